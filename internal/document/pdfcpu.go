package document

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// PDFCPUParser inspects documents with pdfcpu in relaxed validation mode.
type PDFCPUParser struct{}

// NewPDFCPUParser creates a pdfcpu-backed parser. pdfcpu's on-disk
// configuration directory is disabled; the service never writes there.
func NewPDFCPUParser() *PDFCPUParser {
	disableConfigDir.Do(api.DisableConfigDir)
	return &PDFCPUParser{}
}

func (p *PDFCPUParser) Name() string { return ParserPDFCPU }

// Inspect reads the page count and the first page's dimensions. pdfcpu
// mutates the configuration it is handed, so each call gets its own.
func (p *PDFCPUParser) Inspect(data []byte) (info Info, err error) {
	defer func() {
		if r := recover(); r != nil {
			info, err = Info{}, fmt.Errorf("pdfcpu: %v", r)
		}
	}()

	n, err := api.PageCount(bytes.NewReader(data), relaxedConfig())
	if err != nil {
		return Info{}, err
	}
	info.PageCount = n
	if n == 0 {
		return info, nil
	}

	dims, err := api.PageDims(bytes.NewReader(data), relaxedConfig())
	if err != nil {
		return Info{}, err
	}
	if len(dims) > 0 {
		info.FirstPage = Dim{Width: dims[0].Width, Height: dims[0].Height}
	}
	return info, nil
}

func relaxedConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}
