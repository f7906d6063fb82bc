package mockapi

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"time"

	"github.com/dharsanguruparan/compressdash/internal/model"
)

type seedJob struct {
	filename   string
	status     model.JobStatus
	originalKB int64
	savedKB    int64
	errMsg     string
}

var seedJobs = []seedJob{
	{filename: "beach_sunrise.jpg", status: model.StatusCompleted, originalKB: 3400, savedKB: 2300},
	{filename: "mountain_view.png", status: model.StatusCompleted, originalKB: 5200, savedKB: 3700},
	{filename: "city_skyline.jpg", status: model.StatusProcessing, originalKB: 4800},
	{filename: "product_photo.png", status: model.StatusPending, originalKB: 2100},
	{filename: "family_portrait.jpg", status: model.StatusFailed, originalKB: 8600, errMsg: "File format not supported"},
	{filename: "sunset_beach.jpg", status: model.StatusCompleted, originalKB: 3900, savedKB: 2900},
	{filename: "hotel_lobby.png", status: model.StatusProcessing, originalKB: 9700},
	{filename: "restaurant_menu.jpg", status: model.StatusCompleted, originalKB: 1800, savedKB: 1100},
	{filename: "error_large.tiff", status: model.StatusFailed, originalKB: 25600, errMsg: "File size exceeds maximum limit"},
	{filename: "hotel_room.jpg", status: model.StatusCompleted, originalKB: 4400, savedKB: 3000},
}

// Seed fills reg with sample jobs in every status. Completed jobs get a small
// placeholder artifact so downloads work.
func Seed(reg *Registry, now time.Time) error {
	placeholder, err := placeholderPNG()
	if err != nil {
		return err
	}
	for i, s := range seedJobs {
		created := now.Add(-time.Duration(len(seedJobs)-i) * time.Hour).UTC()
		updated := created.Add(10 * time.Minute)
		original := s.originalKB * 1024
		job := model.Job{
			ID:           int64(i + 1),
			Filename:     s.filename,
			OriginalSize: &original,
			Status:       s.status,
			CreatedAt:    &created,
			UpdatedAt:    &updated,
		}
		if s.errMsg != "" {
			msg := s.errMsg
			job.ErrorMessage = &msg
		}
		if s.status == model.StatusCompleted {
			name := artifactName(s.filename)
			compressed := (s.originalKB - s.savedKB) * 1024
			job.CompressedSize = &compressed
			job.CompressedFileName = &name
			reg.PutArtifact(name, placeholder)
		}
		reg.Insert(job)
	}
	return nil
}

func placeholderPNG() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
