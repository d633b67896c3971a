// Package web holds the embedded HTML views and the static landing copy.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Templates parses the embedded views. Template names are the file names.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"percent": func(score float32) int { return int(score*100 + 0.5) },
	}).ParseFS(templateFS, "templates/*.tmpl")
}

// Feature is one tile of the feature grid.
type Feature struct {
	Icon  string
	Title string
	Desc  string
}

// Hero is the landing page headline copy.
type Hero struct {
	Title    string
	Tagline  string
	Emphasis string
	Scanning string
}

// LandingHero is shown at the top of the landing page.
var LandingHero = Hero{
	Title:    "ScamShield++",
	Tagline:  "Detect Fake Finance Apps in",
	Emphasis: "Seconds",
	Scanning: "Analyzing UI patterns, disclaimers, color psychology, and scam fingerprints...",
}

// Features is the static feature grid.
var Features = []Feature{
	{Icon: "🔍", Title: "Pixel-Perfect Analysis", Desc: "AI scans every UI element, color, and pattern"},
	{Icon: "⚡", Title: "Real-Time Detection", Desc: "Get results in under 3 seconds"},
	{Icon: "🛡️", Title: "99.2% Accuracy", Desc: "Trained on 50K+ scam patterns"},
}

// URLPlaceholder is shown in the empty URL field.
const URLPlaceholder = "https://suspicious-app.com"
