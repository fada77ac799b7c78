package ocr

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rektypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
)

type detectTextAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// RekognitionClient extracts label text with AWS Rekognition DetectText.
type RekognitionClient struct {
	api detectTextAPI
}

// NewRekognitionClient loads the default AWS credential chain for region.
func NewRekognitionClient(ctx context.Context, region string) (*RekognitionClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load aws config")
	}
	return &RekognitionClient{api: rekognition.NewFromConfig(cfg)}, nil
}

// Recognize joins detected LINE text in reading order.
func (c *RekognitionClient) Recognize(ctx context.Context, image []byte) (Result, error) {
	if c == nil || c.api == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeDependency, "rekognition client not configured")
	}
	if len(image) == 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "image is required")
	}

	out, err := c.api.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &rektypes.Image{Bytes: image},
	})
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rekognition detect text")
	}

	lines := make([]string, 0, len(out.TextDetections))
	for _, detection := range out.TextDetections {
		if detection.Type != rektypes.TextTypesLine {
			continue
		}
		if text := strings.TrimSpace(aws.ToString(detection.DetectedText)); text != "" {
			lines = append(lines, text)
		}
	}
	return NewResult(strings.Join(lines, "\n")), nil
}
