package api

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/catfinder/internal/db"
	"github.com/banshee-data/catfinder/internal/httputil"
	"github.com/banshee-data/catfinder/internal/locate"
)

// trackView is the recent track with the view square around it.
type trackView struct {
	positions []db.Position
	aps       []db.APLocation // located access points inside the view
	bounds    locate.Box
	window    time.Duration
}

func (s *Server) loadTrack(r *http.Request) (trackView, error) {
	window, err := s.positionWindow(r)
	if err != nil {
		return trackView{}, err
	}
	positions, err := s.db.PositionsSince(r.Context(), s.opts.Clock.Now().Add(-window))
	if err != nil {
		return trackView{}, err
	}
	tv := trackView{positions: positions, window: window}

	points := make([]locate.Point, 0, len(positions))
	for _, p := range positions {
		points = append(points, locate.Point{Lat: p.Lat, Lon: p.Lon})
	}
	tv.bounds, err = locate.ViewBounds(points, s.opts.ViewHalfSide)
	if errors.Is(err, locate.ErrNoPoints) {
		return tv, nil
	}

	aps, err := s.db.APLocations(r.Context())
	if err != nil {
		return trackView{}, err
	}
	for _, ap := range aps {
		if tv.bounds.Contains(locate.Point{Lat: ap.Lat, Lon: ap.Lon}) {
			tv.aps = append(tv.aps, ap)
		}
	}
	return tv, nil
}

// showMap renders the recent track as an echarts scatter of longitude
// against latitude, framed by the view square.
func (s *Server) showMap(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/api/map" {
		httputil.NotFound(w, "not found")
		return
	}
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	tv, err := s.loadTrack(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	track := make([]opts.ScatterData, 0, len(tv.positions))
	for _, p := range tv.positions {
		track = append(track, opts.ScatterData{
			Name:  p.CreatedAt.Format(time.RFC3339),
			Value: []interface{}{p.Lon, p.Lat, p.APUsed},
		})
	}
	aps := make([]opts.ScatterData, 0, len(tv.aps))
	for _, ap := range tv.aps {
		aps = append(aps, opts.ScatterData{Name: ap.BSSID.String(), Value: []interface{}{ap.Lon, ap.Lat}})
	}

	scatter := charts.NewScatter()
	global := []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Cat track", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Cat track",
			Subtitle: fmt.Sprintf("positions=%d window=%s", len(track), tv.window),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	}
	if len(tv.positions) > 0 {
		global = append(global,
			charts.WithXAxisOpts(opts.XAxis{Min: tv.bounds.MinLon, Max: tv.bounds.MaxLon, Name: "Longitude", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Min: tv.bounds.MinLat, Max: tv.bounds.MaxLat, Name: "Latitude", NameLocation: "middle", NameGap: 40}),
		)
	}
	scatter.SetGlobalOptions(global...)
	scatter.AddSeries("positions", track, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	scatter.AddSeries("access points", aps, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// renderTrack draws the recent track as a PNG.
func (s *Server) renderTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	tv, err := s.loadTrack(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Cat track (%d positions, last %s)", len(tv.positions), tv.window)
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"
	p.Add(plotter.NewGrid())

	if len(tv.positions) > 0 {
		p.X.Min, p.X.Max = tv.bounds.MinLon, tv.bounds.MaxLon
		p.Y.Min, p.Y.Max = tv.bounds.MinLat, tv.bounds.MaxLat

		pts := make(plotter.XYs, len(tv.positions))
		for i, pos := range tv.positions {
			pts[i] = plotter.XY{X: pos.Lon, Y: pos.Lat}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to plot track: %v", err))
			return
		}
		line.Width = vg.Points(1)
		line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}

		sc, err := plotter.NewScatter(pts)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to plot track: %v", err))
			return
		}
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(2.5)
		sc.GlyphStyle.Color = line.Color
		p.Add(line, sc)
		p.Legend.Add("positions", sc)

		if len(tv.aps) > 0 {
			apPts := make(plotter.XYs, len(tv.aps))
			for i, ap := range tv.aps {
				apPts[i] = plotter.XY{X: ap.Lon, Y: ap.Lat}
			}
			apSc, err := plotter.NewScatter(apPts)
			if err != nil {
				httputil.InternalServerError(w, fmt.Sprintf("failed to plot access points: %v", err))
				return
			}
			apSc.GlyphStyle.Shape = draw.TriangleGlyph{}
			apSc.GlyphStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
			p.Add(apSc)
			p.Legend.Add("access points", apSc)
		}
		p.Legend.Top = true
	}

	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
