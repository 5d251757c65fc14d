package ai

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thotranphuc276/person-detection/internal/logger"
)

func TestOutputLayerNames(t *testing.T) {
	names := []string{"conv_0", "bn_0", "yolo_82", "conv_83", "yolo_94", "yolo_106"}

	tests := []struct {
		name        string
		unconnected []int
		expected    []string
	}{
		{"yolov3 heads", []int{3, 5, 6}, []string{"yolo_82", "yolo_94", "yolo_106"}},
		{"first layer", []int{1}, []string{"conv_0"}},
		{"out of range skipped", []int{0, 7, 3}, []string{"yolo_82"}},
		{"none", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, outputLayerNames(names, tt.unconnected))
		})
	}
}

func TestNewPersonDetector_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "yolov3.cfg")
	weightsPath := filepath.Join(dir, "yolov3.weights")

	_, err := NewPersonDetector(cfgPath, weightsPath, logger.Discard())
	require.ErrorContains(t, err, "model config not found")

	require.NoError(t, os.WriteFile(cfgPath, []byte("[net]\n"), 0644))
	_, err = NewPersonDetector(cfgPath, weightsPath, logger.Discard())
	require.ErrorContains(t, err, "model weights not found")
}
