package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func encode(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", format, err)
	}
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantMime string
		wantKind Kind
	}{
		{"png", encode(t, "png"), "image/png", KindImage},
		{"jpeg", encode(t, "jpeg"), "image/jpeg", KindImage},
		{"gif", encode(t, "gif"), "image/gif", KindImage},
		{"pdf", []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n"), "application/pdf", KindPDF},
		{"text", []byte("hello world"), "", KindUnsupported},
		{"zip", []byte("PK\x03\x04\x14\x00\x00\x00\x08\x00"), "", KindUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, kind := Detect(tt.data)
			if kind != tt.wantKind {
				t.Fatalf("kind=%v, want %v (mime %s)", kind, tt.wantKind, mime)
			}
			if tt.wantMime != "" && mime != tt.wantMime {
				t.Fatalf("mime=%s, want %s", mime, tt.wantMime)
			}
		})
	}
}

func TestDetectIgnoresExtensionLies(t *testing.T) {
	// A text payload named like an image is still text.
	_, kind := Detect([]byte("<html><body>not an image</body></html>"))
	if kind != KindUnsupported {
		t.Fatalf("kind=%v, want unsupported", kind)
	}
}

func TestAllowed(t *testing.T) {
	got := strings.Join(Allowed(), ",")
	for _, want := range []string{"image/jpeg", "image/png", "application/pdf"} {
		if !strings.Contains(got, want) {
			t.Errorf("Allowed() missing %s", want)
		}
	}
}

func TestLimits(t *testing.T) {
	l := Limits{MaxFiles: 2, MaxFileSize: 10, MaxFilenameLength: 8}

	if err := l.CheckCount(0); !errors.Is(err, ErrNoFiles) {
		t.Errorf("CheckCount(0)=%v", err)
	}
	if err := l.CheckCount(3); !errors.Is(err, ErrTooManyFiles) {
		t.Errorf("CheckCount(3)=%v", err)
	}
	if err := l.CheckCount(2); err != nil {
		t.Errorf("CheckCount(2)=%v", err)
	}

	cases := []struct {
		name string
		size int64
		want error
	}{
		{"a.png", 5, nil},
		{"a.png", 10, nil},
		{"a.png", 11, ErrTooLarge},
		{"a.png", 0, ErrEmptyFile},
		{"longname.png", 5, ErrNameTooLong},
	}
	for _, c := range cases {
		err := l.Check(c.name, c.size)
		if c.want == nil && err != nil {
			t.Errorf("Check(%q,%d)=%v", c.name, c.size, err)
		}
		if c.want != nil && !errors.Is(err, c.want) {
			t.Errorf("Check(%q,%d)=%v, want %v", c.name, c.size, err, c.want)
		}
	}

	if err := (Limits{}).Check("anything-goes.png", 1<<40); err != nil {
		t.Errorf("zero limits should not restrict: %v", err)
	}
}
