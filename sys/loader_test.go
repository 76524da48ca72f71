package sys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchHandler(t *testing.T) {
	t.Parallel()

	handlers := map[string]string{
		"music:add":    "add",
		"music:":       "music",
		"music:skip:":  "skip",
		"music:order":  "order",
		"music:order:": "order prefix",
	}

	tests := []struct {
		customID string
		want     string
		wantOK   bool
	}{
		{customID: "music:add", want: "add", wantOK: true},
		{customID: "music:order", want: "order", wantOK: true},
		{customID: "music:skip:42", want: "skip", wantOK: true},
		{customID: "music:queue:42", want: "music", wantOK: true},
		{customID: "music:order:7", want: "order prefix", wantOK: true},
		{customID: "other:add"},
		{customID: "music"},
	}

	for _, tt := range tests {
		t.Run(tt.customID, func(t *testing.T) {
			t.Parallel()
			got, ok := matchHandler(handlers, tt.customID)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
