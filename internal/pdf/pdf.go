package pdf

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/gridsplit/internal/utils"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoImages is returned when the selected pages carry no embedded images.
var ErrNoImages = errors.New("no embedded images found")

// PageImage is one image embedded in a PDF page.
type PageImage struct {
	Page  int
	Index int
	Image image.Image
}

type extracted struct {
	page  int
	objNr int
	img   image.Image
}

// ExtractImages returns the images embedded in the selected pages, ordered by
// page and then by object number. Scanned documents carry one image per page.
func ExtractImages(filename, pageRange, password string) ([]PageImage, error) {
	pageNumbers, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	f, err := os.Open(filename) //nolint:gosec // G304: reading a user-provided PDF path is expected
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer func() { _ = f.Close() }()

	var pageStrings []string
	if len(pageNumbers) > 0 {
		pageStrings = make([]string, len(pageNumbers))
		for i, n := range pageNumbers {
			pageStrings[i] = strconv.Itoa(n)
		}
	}

	var found []extracted
	digest := func(img model.Image, _ bool, _ int) error {
		decoded, _, err := utils.DecodeImage(img)
		if err != nil {
			// pdfcpu passes through formats we cannot decode, e.g. JPX
			slog.Debug("skipping undecodable PDF image", "page", img.PageNr, "name", img.Name, "type", img.FileType, "error", err)
			return nil
		}
		found = append(found, extracted{page: img.PageNr, objNr: img.ObjNr, img: decoded})
		return nil
	}
	if err := api.ExtractImages(f, pageStrings, digest, newConfiguration(password)); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}
	if len(found) == 0 {
		return nil, ErrNoImages
	}
	return orderImages(found), nil
}

// PageCount returns the number of pages in filename.
func PageCount(filename, password string) (int, error) {
	f, err := os.Open(filename) //nolint:gosec // G304: reading a user-provided PDF path is expected
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer func() { _ = f.Close() }()
	n, err := api.PageCount(f, newConfiguration(password))
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

func newConfiguration(password string) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	if password != "" {
		conf.UserPW = password
		conf.OwnerPW = password
	}
	return conf
}

// orderImages sorts by page and object number and assigns 1-based indices
// within each page.
func orderImages(found []extracted) []PageImage {
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].page != found[j].page {
			return found[i].page < found[j].page
		}
		return found[i].objNr < found[j].objNr
	})
	out := make([]PageImage, len(found))
	idx := 0
	for i, e := range found {
		if i == 0 || e.page != found[i-1].page {
			idx = 0
		}
		idx++
		out[i] = PageImage{Page: e.page, Index: idx, Image: e.img}
	}
	return out
}

// parsePageRange parses a page range string like "1-5" or "1,3,5".
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}

	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses a single page token ("3") or a range token ("1-5").
func parseRangeToken(part string) ([]int, error) {
	if !strings.Contains(part, "-") {
		page, err := strconv.Atoi(part)
		if err != nil || page < 1 {
			return nil, fmt.Errorf("invalid page number: %s", part)
		}
		return []int{page}, nil
	}

	rangeParts := strings.Split(part, "-")
	if len(rangeParts) != 2 {
		return nil, fmt.Errorf("invalid range format: %s", part)
	}
	start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
	if err != nil || start < 1 {
		return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
	}
	end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
	}
	if start > end {
		return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
	}
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out, nil
}
