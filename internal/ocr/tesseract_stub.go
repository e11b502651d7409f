//go:build !tesseract

package ocr

func newTesseractExtractor(Config) (Extractor, error) {
	return nil, ErrOCRNotEnabled
}
