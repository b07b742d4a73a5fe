package service

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"rainrelay/internal/constants"
	"rainrelay/internal/models"
)

// AlertData is the value every alert template is executed with.
type AlertData struct {
	RoleID    string
	CodeWord  string
	Amount    float64
	Text      string
	MessageID string
	ChatName  string
}

// AlertTemplates renders the three outbound alert texts.
type AlertTemplates struct {
	codeWord *template.Template
	rain     *template.Template
	tag      *template.Template
}

func NewAlertTemplates(monitor models.MonitorConfig, relay models.RelayConfig) (*AlertTemplates, error) {
	codeWord, err := parseTemplate("codeWord", monitor.CodeWordTemplate, constants.DefaultCodeWordTemplate)
	if err != nil {
		return nil, err
	}
	rain, err := parseTemplate("rain", monitor.RainTemplate, constants.DefaultRainTemplate)
	if err != nil {
		return nil, err
	}
	tag, err := parseTemplate("tag", relay.TagTemplate, constants.DefaultTagTemplate)
	if err != nil {
		return nil, err
	}
	return &AlertTemplates{codeWord: codeWord, rain: rain, tag: tag}, nil
}

var templateFuncs = template.FuncMap{"amount": formatAmount}

// formatAmount prints the shortest exact decimal and always keeps a fractional
// part, so 150 renders as "150.0" and 150.25 as "150.25".
func formatAmount(v float64) string {
	out := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}

func parseTemplate(name, text, fallback string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		text = fallback
	}
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(templateFuncs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid %s template: %w", name, err)
	}
	return tmpl, nil
}

func (t *AlertTemplates) CodeWord(data AlertData) (string, error) {
	return render(t.codeWord, data)
}

func (t *AlertTemplates) Rain(data AlertData) (string, error) {
	return render(t.rain, data)
}

func (t *AlertTemplates) Tag(data AlertData) (string, error) {
	return render(t.tag, data)
}

func render(tmpl *template.Template, data AlertData) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", tmpl.Name(), err)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("%s template rendered empty text", tmpl.Name())
	}
	return out, nil
}
