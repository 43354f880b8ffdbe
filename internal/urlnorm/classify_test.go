package urlnorm_test

import (
	"testing"

	"github.com/fri-wier/besela/internal/urlnorm"
	"github.com/stretchr/testify/assert"
)

func TestIsURL(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"https://www.gov.si/", true},
		{"http://evem.gov.si", true},
		{"/users/1", true},
		{"about.html", true},
		{"#about", true},
		{"mailto:info@gov.si", false},
		{"javascript:void(0)", false},
		{"tel:+38612345678", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, urlnorm.IsURL(tt.input), "input %q", tt.input)
		})
	}
}

func TestHasFileExtension(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"https://www.gov.si/about.html", true},
		{"https://www.gov.si/docs/report.pdf", true},
		{"https://www.gov.si/about", false},
		{"https://www.gov.si/v1.2/about", false},
		{"https://www.gov.si/", false},
	}

	for _, tt := range tests {
		u := mustParse(t, tt.input)
		assert.Equal(t, tt.want, urlnorm.HasFileExtension(u), "input %q", tt.input)
	}
}

func TestClassifyBinaryLink(t *testing.T) {
	tests := []struct {
		input    string
		wantTag  urlnorm.BinaryType
		wantBool bool
	}{
		{"https://www.gov.si/a/report.pdf", urlnorm.BinaryTypePDF, true},
		{"https://www.gov.si/a/letter.doc", urlnorm.BinaryTypeDOC, true},
		{"https://www.gov.si/a/letter.docx", urlnorm.BinaryTypeDOCX, true},
		{"https://www.gov.si/a/deck.ppt", urlnorm.BinaryTypePPT, true},
		{"https://www.gov.si/a/deck.pptx", urlnorm.BinaryTypePPTX, true},
		{"https://www.gov.si/a/bundle.zip", urlnorm.BinaryTypeNone, true},
		{"https://www.gov.si/a/REPORT.PDF", urlnorm.BinaryTypePDF, true},
		{"https://www.gov.si/a/page.html", urlnorm.BinaryTypeNone, false},
		{"https://www.gov.si/a/", urlnorm.BinaryTypeNone, false},
	}

	for _, tt := range tests {
		u := mustParse(t, tt.input)
		tag, ok := urlnorm.ClassifyBinaryLink(u)
		assert.Equal(t, tt.wantBool, ok, "input %q", tt.input)
		assert.Equal(t, tt.wantTag, tag, "input %q", tt.input)
	}
}
