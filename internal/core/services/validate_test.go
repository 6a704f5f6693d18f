package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
)

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{name: "plain", query: "Tell me about Kafka", want: "Tell me about Kafka"},
		{name: "trimmed", query: "  leadership example \n", want: "leadership example"},
		{name: "empty", query: "", wantErr: true},
		{name: "whitespace only", query: " \t\n ", wantErr: true},
		{name: "exactly max", query: strings.Repeat("a", 300), want: strings.Repeat("a", 300)},
		{name: "too long", query: strings.Repeat("a", 301), wantErr: true},
		{name: "multibyte at max", query: strings.Repeat("é", 300), want: strings.Repeat("é", 300)},
		{name: "script tag", query: "hi <script>alert(1)</script>", wantErr: true},
		{name: "script tag uppercase", query: "<SCRIPT src=x>", wantErr: true},
		{name: "javascript url", query: "JavaScript:void(0)", wantErr: true},
		{name: "vbscript url", query: "vbscript:msgbox", wantErr: true},
		{name: "data html", query: "data:text/html;base64,xx", wantErr: true},
		{name: "onerror handler", query: "img onerror=alert(1)", wantErr: true},
		{name: "onload handler", query: "body OnLoad=x", wantErr: true},
		{name: "iframe", query: "<iframe src=x>", wantErr: true},
		{name: "mentions script word", query: "Did you write scripts for CI?", want: "Did you write scripts for CI?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateQuery(tt.query, 300)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrInvalidInput))

				var vErr *domain.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, "query", vErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateQuery_DefaultMaxLength(t *testing.T) {
	_, err := ValidateQuery(strings.Repeat("a", DefaultMaxQueryLength+1), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = ValidateQuery(strings.Repeat("a", DefaultMaxQueryLength), 0)
	assert.NoError(t, err)
}

func TestValidateQuery_CustomMaxLength(t *testing.T) {
	_, err := ValidateQuery("abcdef", 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
