package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/anicoll/knx-integration/internal/pkg/model"
)

// maxPages caps the page walk; the visu numbers pages 01..99.
const maxPages = 99

type pageFetcher interface {
	FetchPage(ctx context.Context, page string) (string, error)
}

type service struct {
	fetcher pageFetcher
	logger  *zap.Logger
}

func New(fetcher pageFetcher) *service {
	return &service{
		fetcher: fetcher,
		logger:  zap.L(),
	}
}

// DiscoverDevices walks the visu pages in order and scrapes every element
// into a descriptor. The walk stops at the first page without elements,
// which is how the visu signals "no more pages".
func (s *service) DiscoverDevices(ctx context.Context) ([]model.Descriptor, error) {
	descriptors := []model.Descriptor{}

	for pageNum := 1; pageNum <= maxPages; pageNum++ {
		page := fmt.Sprintf("%02d", pageNum)

		html, err := s.fetcher.FetchPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("discovering page %s: %w", page, err)
		}

		pageDescriptors, err := ParsePage(html, page)
		if err != nil {
			return nil, fmt.Errorf("parsing page %s: %w", page, err)
		}
		if len(pageDescriptors) == 0 {
			s.logger.Info("page is empty, stopping discovery", zap.String("page", page))
			break
		}

		s.logger.Info("discovered devices on page",
			zap.String("page", page),
			zap.Int("count", len(pageDescriptors)))
		descriptors = append(descriptors, pageDescriptors...)
	}

	s.logger.Info("discovery finished", zap.Int("total", len(descriptors)))
	return descriptors, nil
}

// ParsePage extracts device descriptors from one rendered visu page.
func ParsePage(html, page string) ([]model.Descriptor, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	descriptors := []model.Descriptor{}
	doc.Find(".visu-element").Each(func(_ int, element *goquery.Selection) {
		id, ok := element.Attr("id")
		if !ok {
			return
		}
		index := element.AttrOr("data-index", "")

		name := strings.TrimSpace(element.Find(".visu-element-name").First().Text())
		if name == "" {
			name = id
		}
		// purely informational displays on the page, not devices
		if strings.Contains(name, "Datum") || strings.Contains(name, "Uhrzeit") {
			return
		}

		classes := element.AttrOr("class", "")
		active := strings.Contains(
			element.Find(".visu-icon").First().AttrOr("class", ""), "btn-active")

		descriptors = append(descriptors, model.Descriptor{
			ID:     id,
			Name:   name,
			Page:   page,
			Index:  index,
			Type:   DetectDeviceType(classes, name),
			Active: active,
		})
	})

	return descriptors, nil
}

// DetectDeviceType classifies a visu element from its CSS classes and its
// display name. The visu renders German labels, hence the keywords. Pure so
// the heuristics stay testable without any network.
func DetectDeviceType(classes, name string) model.DeviceType {
	nameLower := strings.ToLower(name)

	switch {
	case strings.Contains(nameLower, "temperatur"), strings.Contains(nameLower, "temp."):
		return model.DeviceTypeTemperatureSensor
	case strings.Contains(classes, "visu-slider"):
		return model.DeviceTypeDimmer
	case strings.Contains(classes, "visu-shifter"):
		return model.DeviceTypeWindowCovering
	case strings.Contains(nameLower, "szene"):
		return model.DeviceTypeScene
	case strings.Contains(nameLower, "lüftung"):
		return model.DeviceTypeFan
	default:
		return model.DeviceTypeLight
	}
}
