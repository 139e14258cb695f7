// Package render converts finished manual markup into a paginated PDF via
// headless Chromium.
package render

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// A4 print geometry in inches: 18mm top/bottom, 14mm left/right margins.
const (
	paperWidthIn   = 8.27
	paperHeightIn  = 11.69
	marginTopIn    = 0.71
	marginBottomIn = 0.71
	marginLeftIn   = 0.55
	marginRightIn  = 0.55
)

const renderTimeout = 60 * time.Second

// PDFRenderer turns HTML markup into PDF bytes.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// Chromium implements PDFRenderer with a headless browser per render. The
// browser applies the document's own @page CSS; margins here are the outer
// fallback matching the generated stylesheet.
type Chromium struct{}

// NewChromium creates the headless renderer.
func NewChromium() *Chromium {
	return &Chromium{}
}

// RenderPDF loads html into a fresh page and prints it to PDF.
func (r *Chromium) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	renderCtx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	browserCtx, cancelBrowser := chromedp.NewContext(renderCtx)
	defer cancelBrowser()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("get frame tree: %w", err)
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paperWidthIn).
				WithPaperHeight(paperHeightIn).
				WithMarginTop(marginTopIn).
				WithMarginBottom(marginBottomIn).
				WithMarginLeft(marginLeftIn).
				WithMarginRight(marginRightIn).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("print to pdf: %w", err)
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdf, nil
}
