package grpcclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/scamshield/internal/logging"
	"github.com/example/scamshield/internal/scanner"
)

// ScanMethod is the full gRPC method name of the remote scanner. Requests and
// responses are google.protobuf.Struct messages.
const ScanMethod = "/scamshield.v1.Scanner/Scan"

// DialScanner returns a scanner.Service backed by a remote gRPC scanner.
func DialScanner(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (scanner.Service, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)

	conn, err := grpc.DialContext(dialCtx, addr, dialOpts...)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_scanner", "", err)
		logger.Error("failed to dial scanner", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return &grpcScanner{conn: conn, logger: logger.Named("grpc_scanner")}, conn, nil
}

type grpcScanner struct {
	conn   grpc.ClientConnInterface
	logger *zap.Logger
}

func (g *grpcScanner) Scan(ctx context.Context, in scanner.Input) (*scanner.Result, error) {
	req, err := structpb.NewStruct(map[string]interface{}{
		"scan_id":       in.ScanID,
		"session_id":    in.SessionID,
		"kind":          string(in.Kind),
		"url":           in.URL,
		"uploaded_file": in.UploadedFile,
	})
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.encode_scan", in.ScanID, err)
	}

	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, ScanMethod, req, resp); err != nil {
		wrapped := logging.NewOperationError("grpcclient.scan", in.ScanID, err)
		g.logger.Error("scanner call failed", zap.Error(wrapped), zap.String("session_id", in.SessionID))
		return nil, wrapped
	}

	return decodeResult(in, resp)
}

func decodeResult(in scanner.Input, resp *structpb.Struct) (*scanner.Result, error) {
	fields := resp.GetFields()
	result := &scanner.Result{
		ScanID:      in.ScanID,
		Kind:        in.Kind,
		Target:      in.Target(),
		Verdict:     fields["verdict"].GetStringValue(),
		Score:       float32(fields["score"].GetNumberValue()),
		Message:     fields["message"].GetStringValue(),
		CompletedAt: time.Now().UTC(),
	}
	if id := fields["scan_id"].GetStringValue(); id != "" {
		result.ScanID = id
	}
	if result.Verdict == "" {
		result.Verdict = scanner.VerdictUnknown
	}
	for i, v := range fields["findings"].GetListValue().GetValues() {
		s, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, logging.NewOperationError("grpcclient.decode_scan", in.ScanID,
				fmt.Errorf("finding %d is not a string", i))
		}
		result.Findings = append(result.Findings, s.StringValue)
	}
	return result, nil
}
