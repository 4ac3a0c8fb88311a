package sdgateway

import (
	"encoding/base64"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sdforge/sdforge/internal/apperr"
	"github.com/sdforge/sdforge/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	srv := httptest.NewServer(handler)
	c := New(config.SDConfig{
		BaseURL:         srv.URL,
		GenerateTimeout: 2 * time.Second,
		ListTimeout:     2 * time.Second,
		CensorTimeout:   2 * time.Second,
	})
	return c, srv.Close
}

func TestListModels_Success(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sdapi/v1/sd-models" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]SDModel{{Title: "a", ModelName: "a"}})
	})
	defer closeFn()

	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 1 || models[0].ModelName != "a" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestListModels_UpstreamError(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})
	defer closeFn()

	_, err := c.ListModels(context.Background())
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestListModels_AuthRejected(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer closeFn()

	_, err := c.ListModels(context.Background())
	if !apperr.Is(err, apperr.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestTxt2Img_DecodesImages(t *testing.T) {
	imgBytes := []byte{0x89, 0x50, 0x4e, 0x47}
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sdapi/v1/options" {
			json.NewEncoder(w).Encode(optionsResponse{SDModelCheckpoint: "sd_xl_base_1.0.safetensors"})
			return
		}
		var req txt2imgRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Prompt != "<lora:foo:0.8> a cat" {
			t.Errorf("unexpected prompt passthrough: %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(txt2imgResponse{
			Images: []string{base64.StdEncoding.EncodeToString(imgBytes)},
			Info:   "ok",
		})
	})
	defer closeFn()

	result, err := c.Txt2Img(context.Background(), GenerationParams{Prompt: "<lora:foo:0.8> a cat"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Images) != 1 || string(result.Images[0]) != string(imgBytes) {
		t.Fatalf("unexpected decoded images: %+v", result.Images)
	}
}

func TestTxt2Img_AppliesDetectedFormatDefaults(t *testing.T) {
	var captured txt2imgRequest
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sdapi/v1/options" {
			json.NewEncoder(w).Encode(optionsResponse{SDModelCheckpoint: "sd_xl_base_1.0.safetensors"})
			return
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(txt2imgResponse{})
	})
	defer closeFn()

	_, err := c.Txt2Img(context.Background(), GenerationParams{Prompt: "a cat"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sdxl := ConstraintsFor(FormatSDXL)
	if captured.Steps != sdxl.RecommendedSteps || captured.Width != sdxl.Width || captured.Height != sdxl.Height {
		t.Fatalf("expected SDXL defaults applied, got %+v", captured)
	}
}

func TestCensor_ExtensionMissingReturnsUnavailable(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer closeFn()

	result, err := c.Censor(context.Background(), CensorRequest{Image: []byte("x")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Unavailable {
		t.Fatalf("expected Unavailable=true, got %+v", result)
	}
}

func TestCensor_DetectionReturnsMaskedImage(t *testing.T) {
	censored := []byte{1, 2, 3}
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(censorResponseWire{
			Image:         base64.StdEncoding.EncodeToString(censored),
			HasDetections: true,
		})
	})
	defer closeFn()

	result, err := c.Censor(context.Background(), CensorRequest{Image: []byte("x")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.HasNSFW || string(result.CensoredImage) != string(censored) {
		t.Fatalf("unexpected censor result: %+v", result)
	}
}
