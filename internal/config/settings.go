package config

import "time"

// Settings is a snapshot of the service configuration taken at startup.
type Settings struct {
	Port           string
	GinMode        string
	DisableUI      bool
	AllowedOrigins []string

	MaxFileSize       int64
	MaxFiles          int
	MaxRequestSize    int64
	MaxFilenameLength int

	PageSize    string
	PageMargin  float64
	PageUpscale bool
	ImageDPI    float64
	JPEGQuality int
	PDFMode     string
	RasterDPI   float64

	OptimizeOutput bool
	StoreOutput    bool
	Retention      time.Duration
	FetchTimeout   time.Duration
	SniffTimeout   time.Duration
}

const (
	PDFModeCopy      = "copy"
	PDFModeRasterize = "rasterize"
)

// Load reads Settings from the environment.
func Load() Settings {
	s := Settings{
		Port:           Get("PORT", "8000"),
		GinMode:        Get("GIN_MODE", "release"),
		DisableUI:      GetBool("DISABLE_UI", false),
		AllowedOrigins: GetList("ALLOWED_ORIGINS", "*"),

		MaxFileSize:       GetInt64("MAX_FILE_SIZE", 20<<20),
		MaxFiles:          GetInt("MAX_FILES", 25),
		MaxRequestSize:    GetInt64("MAX_REQUEST_SIZE", 100<<20),
		MaxFilenameLength: GetInt("MAX_FILENAME_LENGTH", 255),

		PageSize:    Get("PAGE_SIZE", "A4"),
		PageMargin:  GetFloat("PAGE_MARGIN", 0),
		PageUpscale: GetBool("PAGE_UPSCALE", true),
		ImageDPI:    GetFloat("IMAGE_DPI", 150),
		JPEGQuality: GetInt("JPEG_QUALITY", 90),
		PDFMode:     Get("PDF_MODE", PDFModeCopy),
		RasterDPI:   GetFloat("RASTER_DPI", 150),

		OptimizeOutput: GetBool("OPTIMIZE_OUTPUT", false),
		StoreOutput:    GetBool("STORE_OUTPUT", false),
		Retention:      time.Duration(GetInt("RETENTION_HOURS", 24)) * time.Hour,
		FetchTimeout:   GetDuration("FETCH_TIMEOUT", 30*time.Second),
		SniffTimeout:   GetDuration("SNIFF_TIMEOUT", 5*time.Second),
	}

	if s.PDFMode != PDFModeRasterize {
		s.PDFMode = PDFModeCopy
	}
	if s.JPEGQuality < 1 || s.JPEGQuality > 100 {
		s.JPEGQuality = 90
	}
	if s.PageMargin < 0 {
		s.PageMargin = 0
	}
	return s
}
