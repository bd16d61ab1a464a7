package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{
			name: "dev build",
			info: Info{Version: "dev", CommitHash: "dev", BuildTime: "unknown"},
			want: "protobridge dev (commit dev, built unknown)",
		},
		{
			name: "tagged build",
			info: Info{Version: "v1.2.0", CommitHash: "0123456789abcdef", BuildTime: "2026-01-02"},
			want: "protobridge v1.2.0 (commit 0123456, built 2026-01-02)",
		},
		{
			name: "untagged describe output",
			info: Info{Version: "main-dirty", CommitHash: "abc", BuildTime: "now"},
			want: "protobridge dev (commit abc, built now)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.String())
		})
	}
}

func TestGet(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
	assert.Empty(t, info.Compiler)
}
