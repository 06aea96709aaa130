package roboflow

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	pv "github.com/jamesainslie/go-pv"
)

// Prediction is one box of an inference response. Required fields are
// pointers so missing values can be told apart from zeros.
type Prediction struct {
	X           *float64 `json:"x"`
	Y           *float64 `json:"y"`
	Width       *float64 `json:"width"`
	Height      *float64 `json:"height"`
	Confidence  *float64 `json:"confidence"`
	Class       string   `json:"class"`
	ClassID     int      `json:"class_id"`
	DetectionID string   `json:"detection_id"`
}

// Response is a hosted inference response.
type Response struct {
	InferenceID string  `json:"inference_id"`
	Time        float64 `json:"time"`
	Image       struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"image"`
	Predictions []Prediction `json:"predictions"`

	// Raw is the full response body.
	Raw *structpb.Struct `json:"-"`
}

// DecodeResponse parses an inference response body.
func DecodeResponse(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	s, err := structpb.NewStruct(raw)
	if err != nil {
		return nil, fmt.Errorf("converting response: %w", err)
	}
	resp.Raw = s

	return &resp, nil
}

// Detections converts predictions for imageID. Predictions missing
// geometry or confidence, or with malformed values, are skipped and counted.
func (r *Response) Detections(imageID string) (detections []pv.Detection, skipped int) {
	for _, p := range r.Predictions {
		if p.X == nil || p.Y == nil || p.Width == nil || p.Height == nil || p.Confidence == nil {
			skipped++
			continue
		}
		d := pv.Detection{
			ImageID:    imageID,
			X:          *p.X,
			Y:          *p.Y,
			Width:      *p.Width,
			Height:     *p.Height,
			Confidence: *p.Confidence,
			ClassID:    p.ClassID,
			Class:      p.Class,
		}
		if !d.Valid() {
			skipped++
			continue
		}
		detections = append(detections, d)
	}
	return detections, skipped
}

// Infer runs the hosted model modelID ("project/version") on an image file.
func (c *Client) Infer(ctx context.Context, modelID, imagePath string) (*Response, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	payload := base64.StdEncoding.EncodeToString(data)

	endpoint := strings.TrimRight(c.inferURL, "/") + "/" + strings.Trim(modelID, "/") +
		"?" + url.Values{"api_key": {c.apiKey}}.Encode()

	body, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("inference on %s: %w", imagePath, err)
	}

	return DecodeResponse(body)
}

// do sends a request built by newReq, retrying on 429 and 5xx responses.
func (c *Client) do(ctx context.Context, newReq func() (*http.Request, error)) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()

			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("reading body: %w", readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return body, nil
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				lastErr = fmt.Errorf("%w: %s: %s", ErrRequestFailed, resp.Status, bytes.TrimSpace(body))
			default:
				return nil, fmt.Errorf("%w: %s: %s", ErrRequestFailed, resp.Status, bytes.TrimSpace(body))
			}
		}

		if attempt < retryAttempts {
			c.logger.Debug("retrying request", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * retryDelay):
			}
		}
	}

	return nil, lastErr
}

// Detector adapts the client to pv.Detector for one hosted model.
type Detector struct {
	client  *Client
	modelID string
}

// Detector returns a pv.Detector running modelID.
func (c *Client) Detector(modelID string) *Detector {
	return &Detector{client: c, modelID: modelID}
}

// Detect implements pv.Detector.
func (d *Detector) Detect(ctx context.Context, imageID, path string) (*pv.Inference, error) {
	resp, err := d.client.Infer(ctx, d.modelID, path)
	if err != nil {
		return nil, err
	}

	dets, skipped := resp.Detections(imageID)
	return &pv.Inference{
		ImageID:    imageID,
		Detections: dets,
		Skipped:    skipped,
		Raw:        resp.Raw,
	}, nil
}
