package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

// DetectTextAPI is the slice of the Rekognition client used here.
type DetectTextAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// RekognitionReader reads text lines with AWS Rekognition DetectText.
// The SDK client is safe for concurrent use.
type RekognitionReader struct {
	client DetectTextAPI
	logger *slog.Logger
}

func NewRekognitionReader(client DetectTextAPI, logger *slog.Logger) *RekognitionReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &RekognitionReader{client: client, logger: logger}
}

// NewRekognitionReaderFromEnv loads AWS credentials from the default chain.
func NewRekognitionReaderFromEnv(ctx context.Context, cfg Config, logger *slog.Logger) (*RekognitionReader, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("aws credentials: %w", err)
	}
	return NewRekognitionReader(rekognition.NewFromConfig(awsCfg), logger), nil
}

func (r *RekognitionReader) Read(ctx context.Context, img image.Image) ([]entity.Observation, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, common.OCRFailure(EngineRekognition, fmt.Errorf("encode roi: %w", err))
	}

	res, err := r.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: buf.Bytes()},
	})
	if err != nil {
		return nil, common.OCRFailure(EngineRekognition, err)
	}

	w := float64(img.Bounds().Dx())
	h := float64(img.Bounds().Dy())
	var out []entity.Observation
	for _, td := range res.TextDetections {
		if td.Type != types.TextTypesLine || td.DetectedText == nil {
			continue
		}
		out = append(out, entity.Observation{
			Polygon:    geometryPolygon(td.Geometry, w, h),
			Text:       aws.ToString(td.DetectedText),
			Confidence: float64(aws.ToFloat32(td.Confidence)) / 100,
		})
	}
	r.logger.Debug("rekognition read", "detections", len(res.TextDetections), "lines", len(out))
	return out, nil
}

// geometryPolygon scales Rekognition's normalized geometry to pixels,
// preferring the polygon over the bounding box.
func geometryPolygon(g *types.Geometry, w, h float64) entity.Polygon {
	if g == nil {
		return nil
	}
	if len(g.Polygon) == 4 {
		poly := make(entity.Polygon, 0, 4)
		for _, p := range g.Polygon {
			poly = append(poly, entity.Point{
				X: float64(aws.ToFloat32(p.X)) * w,
				Y: float64(aws.ToFloat32(p.Y)) * h,
			})
		}
		return poly
	}
	if bb := g.BoundingBox; bb != nil {
		left := float64(aws.ToFloat32(bb.Left)) * w
		top := float64(aws.ToFloat32(bb.Top)) * h
		right := left + float64(aws.ToFloat32(bb.Width))*w
		bottom := top + float64(aws.ToFloat32(bb.Height))*h
		return entity.Polygon{{X: left, Y: top}, {X: right, Y: top}, {X: right, Y: bottom}, {X: left, Y: bottom}}
	}
	return nil
}
