package services

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// ImageService stores uploaded payment proof images and produces the
// previews shown in the confirmation review queue.
type ImageService struct {
	baseDir string
}

func NewImageService(baseDir string) *ImageService {
	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		_ = os.MkdirAll(baseDir, 0755)
	}
	return &ImageService{
		baseDir: baseDir,
	}
}

// ProcessAndSaveProofImage saves the original proof image and a reduced
// preview. Returned paths are relative to the storage root so they compose
// with LocalStorage lookups and deletes.
func (s *ImageService) ProcessAndSaveProofImage(file multipart.File, header *multipart.FileHeader) (originalPath, thumbPath string, err error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return "", "", fmt.Errorf("formato de imagen no soportado (solo JPG/PNG)")
	}

	// Decode before writing anything to disk; a file that does not decode
	// is not stored at all.
	img, _, err := image.Decode(file)
	if err != nil {
		return "", "", fmt.Errorf("error al decodificar imagen: %w", err)
	}

	// Same year/month layout LocalStorage uses for PDF proofs
	subDir := filepath.Join("proofs", time.Now().Format("2006/01"))
	if err := os.MkdirAll(filepath.Join(s.baseDir, subDir), 0755); err != nil {
		return "", "", fmt.Errorf("error al crear directorio: %w", err)
	}

	filename := uuid.New().String()
	originalRel := filepath.Join(subDir, filename+ext)
	thumbRel := filepath.Join(subDir, filename+"_thumb"+ext)

	// The original is stored as uploaded, without re-encoding
	if _, err := file.Seek(0, 0); err != nil {
		return "", "", fmt.Errorf("error al leer archivo: %w", err)
	}

	outOriginal, err := os.Create(filepath.Join(s.baseDir, originalRel))
	if err != nil {
		return "", "", fmt.Errorf("error al crear archivo: %w", err)
	}
	defer outOriginal.Close()

	if _, err := io.Copy(outOriginal, file); err != nil {
		os.Remove(filepath.Join(s.baseDir, originalRel))
		return "", "", fmt.Errorf("error al guardar imagen original: %w", err)
	}

	// Fit keeps the whole document readable; Fill would crop the edges of
	// a photographed receipt.
	thumbImg := imaging.Fit(img, 480, 480, imaging.Lanczos)

	outThumb, err := os.Create(filepath.Join(s.baseDir, thumbRel))
	if err != nil {
		os.Remove(filepath.Join(s.baseDir, originalRel))
		return "", "", fmt.Errorf("error al crear miniatura: %w", err)
	}
	defer outThumb.Close()

	if ext == ".png" {
		err = png.Encode(outThumb, thumbImg)
	} else {
		err = jpeg.Encode(outThumb, thumbImg, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		os.Remove(filepath.Join(s.baseDir, originalRel))
		os.Remove(filepath.Join(s.baseDir, thumbRel))
		return "", "", fmt.Errorf("error al guardar miniatura: %w", err)
	}

	return originalRel, thumbRel, nil
}
