package scanning

import (
	"context"
	"fmt"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

// GoogleVisionConfidence is reported on text read by Google Cloud Vision.
const GoogleVisionConfidence = 0.9

// imageAnnotator is the subset of the Vision client used here
type imageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// GoogleVision implements OCRProvider using Google Cloud Vision text detection
type GoogleVision struct {
	client        imageAnnotator
	languageHints []string
}

// GoogleVisionConfig selects how the Vision client authenticates. An API key wins over
// a credentials file; with neither, application default credentials are used.
type GoogleVisionConfig struct {
	APIKey          string
	CredentialsFile string
}

// NewGoogleVision creates a new Google Vision OCR provider
func NewGoogleVision(ctx context.Context, cfg GoogleVisionConfig) (*GoogleVision, error) {
	var opts []option.ClientOption
	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}
	return newGoogleVisionWithClient(client), nil
}

func newGoogleVisionWithClient(client imageAnnotator) *GoogleVision {
	return &GoogleVision{client: client, languageHints: []string{"th", "en"}}
}

// Source implements OCRProvider
func (g *GoogleVision) Source() Source {
	return SourceGoogleVision
}

// ExtractText runs TEXT_DETECTION and returns the full-text annotation
func (g *GoogleVision) ExtractText(ctx context.Context, img Image) (*OCRResult, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{Content: img.Data},
			Features: []*visionpb.Feature{{
				Type:       visionpb.Feature_TEXT_DETECTION,
				MaxResults: 1,
			}},
			ImageContext: &visionpb.ImageContext{LanguageHints: g.languageHints},
		}},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("annotating image: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, fmt.Errorf("%w: empty vision response", ErrMalformedResponse)
	}

	first := resp.GetResponses()[0]
	if st := first.GetError(); st != nil && st.GetCode() != 0 {
		return nil, fmt.Errorf("vision error %d: %s", st.GetCode(), st.GetMessage())
	}
	annotations := first.GetTextAnnotations()
	if len(annotations) == 0 {
		return nil, ErrNoText
	}

	return &OCRResult{
		Text:       annotations[0].GetDescription(),
		Confidence: GoogleVisionConfidence,
		Source:     SourceGoogleVision,
	}, nil
}

// Close closes the Vision client
func (g *GoogleVision) Close() error {
	return g.client.Close()
}
