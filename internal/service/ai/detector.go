package ai

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/thotranphuc276/person-detection/internal/logger"
	"github.com/thotranphuc276/person-detection/internal/model"
	"github.com/thotranphuc276/person-detection/internal/service/ai/yolo"
)

const (
	// InputSize is the square network input used for the YOLOv3 blob.
	InputSize = 416
	// scaleFactor maps 0..255 pixel values to 0..1.
	scaleFactor = 1.0 / 255.0
)

var boxColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}

// PersonDetector runs a Darknet YOLOv3 network through OpenCV's DNN module.
type PersonDetector struct {
	net          gocv.Net
	outputLayers []string
	logger       *logger.Logger
	mu           sync.Mutex // gocv.Net is not safe for concurrent Forward calls
}

// NewPersonDetector loads the network described by configPath/weightsPath.
func NewPersonDetector(configPath, weightsPath string, log *logger.Logger) (*PersonDetector, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model config not found: %s", configPath)
	}
	if _, err := os.Stat(weightsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model weights not found: %s", weightsPath)
	}

	// The .cfg/.weights extensions select the Darknet importer.
	net := gocv.ReadNet(weightsPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", weightsPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable target: %w", err)
	}

	d := &PersonDetector{
		net:          net,
		outputLayers: getOutputLayers(net),
		logger:       log,
	}
	log.Info("Detection network initialized with %d output layers", len(d.outputLayers))
	return d, nil
}

// Detect runs the network over the image at imagePath, keeps person boxes
// scoring above threshold and writes an annotated copy to resultPath.
func (d *PersonDetector) Detect(ctx context.Context, imagePath, resultPath string, threshold float64) (*model.DetectionOutcome, error) {
	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	if img.Empty() {
		return nil, fmt.Errorf("failed to read image %s: %w", imagePath, yolo.ErrInvalidImage)
	}
	defer img.Close()

	width, height := img.Cols(), img.Rows()

	outputs, err := d.forward(ctx, img)
	if err != nil {
		return nil, err
	}

	boxes, err := yolo.Postprocess(outputs, width, height, threshold)
	if err != nil {
		return nil, err
	}

	if err := annotate(img, boxes, resultPath); err != nil {
		return nil, err
	}

	d.logger.Debug("Detected %d person(s) in %s (%dx%d)", len(boxes), imagePath, width, height)
	return &model.DetectionOutcome{
		Boxes:           boxes,
		ImageWidth:      width,
		ImageHeight:     height,
		ResultImagePath: resultPath,
	}, nil
}

// forward feeds the image through the network and copies every output layer
// into plain float slices.
func (d *PersonDetector) forward(ctx context.Context, img gocv.Mat) ([][][]float32, error) {
	blob := gocv.BlobFromImage(
		img,
		scaleFactor,
		image.Pt(InputSize, InputSize),
		gocv.NewScalar(0, 0, 0, 0),
		true,  // swapRB
		false, // crop
	)
	defer blob.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.net.SetInput(blob, "")
	mats := d.net.ForwardLayers(d.outputLayers)
	defer func() {
		for i := range mats {
			mats[i].Close()
		}
	}()

	outputs := make([][][]float32, 0, len(mats))
	for _, m := range mats {
		outputs = append(outputs, matRows(m))
	}
	return outputs, nil
}

func matRows(m gocv.Mat) [][]float32 {
	rows, cols := m.Rows(), m.Cols()
	layer := make([][]float32, rows)
	for i := 0; i < rows; i++ {
		row := make([]float32, cols)
		for j := 0; j < cols; j++ {
			row[j] = m.GetFloatAt(i, j)
		}
		layer[i] = row
	}
	return layer
}

// annotate draws the kept boxes with their confidences on a copy of img and
// writes it to path.
func annotate(img gocv.Mat, boxes []yolo.BoundingBox, path string) error {
	result := img.Clone()
	defer result.Close()

	for _, box := range boxes {
		rect := image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height)
		if err := gocv.Rectangle(&result, rect, boxColor, 2); err != nil {
			return fmt.Errorf("failed to draw box: %w", err)
		}

		label := fmt.Sprintf("Person: %.2f", box.Confidence)
		if err := gocv.PutText(&result, label, image.Pt(box.X, box.Y-5), gocv.FontHersheySimplex, 0.5, boxColor, 2); err != nil {
			return fmt.Errorf("failed to draw label: %w", err)
		}
	}

	if ok := gocv.IMWrite(path, result); !ok {
		return fmt.Errorf("failed to write annotated image %s", path)
	}
	return nil
}

// Close releases the network.
func (d *PersonDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.net.Empty() {
		d.net.Close()
	}
}

func getOutputLayers(net gocv.Net) []string {
	return outputLayerNames(net.GetLayerNames(), net.GetUnconnectedOutLayers())
}

// outputLayerNames maps OpenCV's 1-based unconnected layer ids to names.
// Ids outside the name list are skipped.
func outputLayerNames(layerNames []string, unconnected []int) []string {
	var outputLayers []string
	for _, i := range unconnected {
		if i >= 1 && i <= len(layerNames) {
			outputLayers = append(outputLayers, layerNames[i-1])
		}
	}
	return outputLayers
}
