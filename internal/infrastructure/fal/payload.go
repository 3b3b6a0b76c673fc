package fal

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/doeshing/afcover/internal/domain"
)

const maxReferenceBytes = 20 << 20

func buildPayload(req domain.GenerationRequest) (submitPayload, error) {
	payload := submitPayload{
		Prompt:           req.Prompt,
		AspectRatio:      req.AspectRatio,
		Resolution:       string(req.Resolution),
		NumImages:        req.NumVariations,
		OutputFormat:     string(req.OutputFormat),
		Seed:             req.Seed,
		LimitGenerations: req.LimitGenerations,
		EnableWebSearch:  req.EnableWebSearch,
		SyncMode:         false,
	}
	if payload.AspectRatio == "" {
		payload.AspectRatio = domain.CoverAspectRatio
	}
	for _, ref := range req.ReferenceImages {
		uri, err := referenceURI(ref)
		if err != nil {
			return submitPayload{}, err
		}
		payload.ImageURLs = append(payload.ImageURLs, uri)
	}
	return payload, nil
}

// referenceURI passes remote and data URIs through and inlines local files as
// base64 data URIs.
func referenceURI(ref string) (string, error) {
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "data:") {
		return ref, nil
	}
	info, err := os.Stat(ref)
	if err != nil {
		return "", domain.NewValidationError("reference_images", fmt.Sprintf("cannot read %s: %v", ref, err))
	}
	if info.IsDir() || info.Size() > maxReferenceBytes {
		return "", domain.NewValidationError("reference_images", fmt.Sprintf("%s is not an image file under 20MB", ref))
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", domain.NewValidationError("reference_images", fmt.Sprintf("cannot read %s: %v", ref, err))
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(ref)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", domain.NewValidationError("reference_images", fmt.Sprintf("%s is not an image (%s)", ref, mimeType))
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
