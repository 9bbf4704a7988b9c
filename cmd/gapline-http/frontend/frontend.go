package frontend

import (
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"io/fs"
	"log"
	"net/http"
	"time"

	"git.unix.lgbt/diamondburned/gapline"
	"git.unix.lgbt/diamondburned/gapline/internal/config"
	"github.com/diamondburned/tmplutil"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

//go:embed components pages static
var webFS embed.FS

var Templater = tmplutil.Templater{
	FileSystem: webFS,
	Includes: map[string]string{
		"errbox": "components/errbox/errbox.html",
		"rawcss": "static/style.css",
	},
	Functions: template.FuncMap{
		"formatTime": formatTime,
		"relTime":    humanize.Time,
		"count":      count,
		"value":      value,
		"gapLength":  gapLength,
	},
}

func formatTime(t time.Time) string {
	return t.Format(gapline.DateFormat)
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func value(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

// gapLength formats the duration of a gap, such as "2 hours".
func gapLength(gap gapline.Gap) string {
	return humanize.RelTime(gap.From, gap.To, "", "")
}

// MountStatic mounts a static HTTP handler.
func MountStatic() http.Handler {
	sub, err := fs.Sub(webFS, "static")
	if err != nil {
		log.Panicln("failed to get static:", err)
	}

	return http.FileServer(http.FS(sub))
}

// Source describes where and how series are read.
type Source struct {
	DBPath string
	Config *config.Config
}

// ReadRaw reads the last dura of every series without filling any gap. The
// configured metadata overrides the stored one.
func (src Source) ReadRaw(dura time.Duration) (gapline.Document, error) {
	d, err := gapline.OpenWithLogger(src.DBPath, false, src.Config.Logger())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open")
	}
	defer d.Close()

	opts := gapline.LastDuration(time.Now(), dura)

	doc, err := d.ReadDocument(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read frame %v", opts)
	}

	for i := range doc {
		doc[i].Info = src.Config.Apply(doc[i].Info)
	}

	return doc, nil
}

// ReadDocument reads the last dura of every series and fills their gaps.
func (src Source) ReadDocument(dura time.Duration) (gapline.Document, error) {
	doc, err := src.ReadRaw(dura)
	if err != nil {
		return nil, err
	}

	return doc.Fill(src.Config.IntervalOf)
}

// FilledSeries is a gap-filled series along with its domain.
type FilledSeries struct {
	gapline.Series
	Domain *gapline.Domain `json:"domain,omitempty"`
}

// ReadSeries reads the last dura of the series with the given key and fills
// its gaps.
func (src Source) ReadSeries(key string, dura time.Duration) (FilledSeries, error) {
	d, err := gapline.OpenWithLogger(src.DBPath, false, src.Config.Logger())
	if err != nil {
		return FilledSeries{}, errors.Wrap(err, "failed to open")
	}
	defer d.Close()

	series, err := d.ReadSeries(key, gapline.LastDuration(time.Now(), dura))
	if err != nil {
		return FilledSeries{}, err
	}

	series.Info = src.Config.Apply(series.Info)

	series, err = series.Fill(src.Config.IntervalOf(key))
	if err != nil {
		return FilledSeries{}, err
	}

	filled := FilledSeries{Series: series}
	if domain, ok := series.Domain(); ok {
		filled.Domain = &domain
	}

	return filled, nil
}

// Summary summarizes a single series over a time frame.
type Summary struct {
	gapline.Info
	Interval time.Duration   `json:"interval"`
	Samples  int             `json:"samples"`
	Gaps     []gapline.Gap   `json:"gaps"`
	Last     *gapline.Sample `json:"last,omitempty"`
}

// Summarize summarizes every series of the raw, unfilled document.
func (src Source) Summarize(doc gapline.Document) ([]Summary, error) {
	summaries := make([]Summary, len(doc))

	for i, series := range doc {
		interval := src.Config.IntervalOf(series.Key)

		gaps, err := gapline.Gaps(series.Values, interval)
		if err != nil {
			return nil, errors.Wrapf(err, "series %q", series.Key)
		}

		if gaps == nil {
			gaps = []gapline.Gap{}
		}

		summaries[i] = Summary{
			Info:     series.Info,
			Interval: interval,
			Samples:  len(series.Values),
			Gaps:     gaps,
		}

		if last, ok := series.Last(); ok {
			summaries[i].Last = &last
		}
	}

	return summaries, nil
}

// WriteJSON writes v as JSON. Errors are logged into stderr.
func WriteJSON(w io.Writer, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("failed to write JSON:", err)
	}
}
