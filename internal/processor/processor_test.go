package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQuality(t *testing.T) {
	tests := []struct {
		name    string
		raw     int
		wantErr bool
	}{
		{name: "lower bound", raw: 0},
		{name: "default", raw: 50},
		{name: "upper bound", raw: 100},
		{name: "just above upper bound", raw: 101, wantErr: true},
		{name: "far above upper bound", raw: 1000, wantErr: true},
		{name: "negative", raw: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := NewQuality(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrQualityOutOfRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.raw, q.Int())
		})
	}
}

func TestDefaultFactory_Create(t *testing.T) {
	factory := NewDefaultFactory()

	tests := []struct {
		name    string
		source  string
		wantErr bool
	}{
		{name: "jpg", source: "a.jpg"},
		{name: "jpeg", source: "a.jpeg"},
		{name: "jpg with directory", source: "photos/vacation/a.jpg"},
		{name: "png", source: "a.png", wantErr: true},
		{name: "no extension", source: "a", wantErr: true},
		{name: "uppercase extension", source: "a.JPG", wantErr: true},
		{name: "trailing dot", source: "a.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := factory.Create(tt.source)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedFormat)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.source, p.InputPath())
		})
	}
}

func TestDefaultFactory_ConcurrentCreate(t *testing.T) {
	factory := NewDefaultFactory()

	done := make(chan struct{})
	for i := 0; i < 16; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				if _, err := factory.Create("a.jpg"); err != nil {
					t.Error(err)
					return
				}
				if _, err := factory.Create("a.gif"); err == nil {
					t.Error("expected unsupported format error")
					return
				}
			}
		}()
	}
	for i := 0; i < 16; i++ {
		<-done
	}
}

func TestDefaultFactory_Supported(t *testing.T) {
	factory := NewDefaultFactory()
	assert.Equal(t, []string{"jpeg", "jpg"}, factory.Supported())
}
