package face

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/identityonboardflow/internal/apperr"
)

const detectorSystemPrompt = "You are a face detection tool. You are given a single image and must count the human faces visible in it. You must output your response as a valid JSON object."

const detectorUserPrompt = `Count the human faces in the provided image.

Return ONLY a JSON object with exactly one key:
  "faceCount": the number of distinct human faces visible in the image, as a non-negative integer.

Do not include any text before or after the JSON object.`

// GeminiDetector counts faces with a Vertex AI vision model, reading the
// image by its gs:// URI so the bytes never pass through this process again.
type GeminiDetector struct {
	model      *genai.GenerativeModel
	baseClient *genai.Client
}

func NewGeminiDetector(ctx context.Context, projectID, region string) (*GeminiDetector, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewGeminiDetector: projectID and region cannot be empty")
	}
	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel("gemini-1.5-flash")
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(detectorSystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	return &GeminiDetector{model: model, baseClient: baseClient}, nil
}

func (d *GeminiDetector) Detect(ctx context.Context, img Image) (int, error) {
	mimeType := "image/jpeg"
	if strings.HasSuffix(img.GCSUri, ".png") {
		mimeType = "image/png"
	}
	resp, err := d.model.GenerateContent(ctx,
		genai.FileData{MIMEType: mimeType, FileURI: img.GCSUri},
		genai.Text(detectorUserPrompt),
	)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindUpstream, "face detection request failed", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return 0, apperr.New(apperr.KindUpstream, "face detection returned no candidates")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return 0, apperr.New(apperr.KindUpstream, "face detection returned a non-text part")
	}

	var result struct {
		FaceCount int `json:"faceCount"`
	}
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return 0, apperr.Wrap(apperr.KindUpstream, "failed to decode detection response", err)
	}
	if result.FaceCount < 0 {
		return 0, apperr.New(apperr.KindUpstream, "face detection returned a negative count")
	}
	return result.FaceCount, nil
}

func (d *GeminiDetector) Close() error {
	if d.baseClient != nil {
		return d.baseClient.Close()
	}
	return nil
}
