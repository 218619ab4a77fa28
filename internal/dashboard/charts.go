package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/dyluth/esgpanel/internal/fe"
	"github.com/dyluth/esgpanel/internal/predict"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgsvg"
)

const (
	chartWidth = 16 * vg.Centimeter
	rowHeight  = vg.Centimeter
)

var (
	colorBest  = color.RGBA{R: 0x2e, G: 0x7d, B: 0x32, A: 0xff}
	colorOther = color.RGBA{R: 0x90, G: 0xa4, B: 0xae, A: 0xff}
	colorCoef  = color.RGBA{R: 0x15, G: 0x65, B: 0xc0, A: 0xff}
	colorZero  = color.Gray{Y: 0x99}
)

// segments splits a series into runs of consecutive present values, so a
// missing year breaks the line instead of being bridged.
func segments(s Series) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(s.Years[i]), Y: v})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// yearTicks labels every whole year, thinned to at most eight labels.
func yearTicks(lo, hi float64) []plot.Tick {
	first, last := int(math.Ceil(lo)), int(math.Floor(hi))
	step := max(1, (last-first+7)/8)
	var out []plot.Tick
	for y := first; y <= last; y++ {
		t := plot.Tick{Value: float64(y)}
		if (y-first)%step == 0 {
			t.Label = strconv.Itoa(y)
		}
		out = append(out, t)
	}
	return out
}

// TrendPlot draws one line per series over the years. Returns nil when no
// series has a value.
func TrendPlot(series []Series) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Mean index (z)"
	p.X.Tick.Marker = plot.TickerFunc(yearTicks)
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	drawn := false
	for k, s := range series {
		for i, xy := range segments(s) {
			l, pts, err := plotter.NewLinePoints(xy)
			if err != nil {
				return nil, fmt.Errorf("failed to plot %s: %w", s.Name, err)
			}
			c := plotutil.Color(k)
			l.Color, l.Width = c, vg.Points(2)
			pts.Color, pts.Shape = c, draw.CircleGlyph{}
			p.Add(l, pts)
			if i == 0 {
				p.Legend.Add(s.Name, l)
			}
			drawn = true
		}
	}
	if !drawn {
		return nil, nil
	}
	return p, nil
}

// whiskers pairs point estimates with their interval half-widths.
type whiskers struct {
	plotter.XYs
	plotter.XErrors
}

// CoefPlot draws each coefficient as a dot with its 95% interval, first
// coefficient on top. Filled dots are significant at 5%. The x axis always
// includes zero.
func CoefPlot(coefs []fe.Coefficient) (*plot.Plot, error) {
	if len(coefs) == 0 {
		return nil, nil
	}
	p := plot.New()
	p.X.Label.Text = "Estimate (95% CI)"

	n := len(coefs)
	var all whiskers
	var sig, insig plotter.XYs
	var labels []plot.Tick
	for i, c := range coefs {
		if math.IsNaN(c.Estimate) || math.IsInf(c.Estimate, 0) {
			continue
		}
		xy := plotter.XY{X: c.Estimate, Y: float64(n - 1 - i)}
		lo, hi := c.Estimate-c.Lower, c.Upper-c.Estimate
		if math.IsNaN(lo) || math.IsNaN(hi) {
			lo, hi = 0, 0
		}
		all.XYs = append(all.XYs, xy)
		all.XErrors = append(all.XErrors, struct{ Low, High float64 }{lo, hi})
		if c.P < 0.05 {
			sig = append(sig, xy)
		} else {
			insig = append(insig, xy)
		}
		labels = append(labels, plot.Tick{Value: xy.Y, Label: c.Name})
	}
	if len(all.XYs) == 0 {
		return nil, nil
	}

	zero, err := plotter.NewLine(plotter.XYs{{X: 0, Y: -0.5}, {X: 0, Y: float64(n) - 0.5}})
	if err != nil {
		return nil, err
	}
	zero.Color = colorZero
	zero.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(zero)

	bars, err := plotter.NewXErrorBars(all)
	if err != nil {
		return nil, fmt.Errorf("failed to plot intervals: %w", err)
	}
	bars.Color, bars.Width = colorCoef, vg.Points(2)
	p.Add(bars)

	for _, set := range []struct {
		xys   plotter.XYs
		shape draw.GlyphDrawer
	}{{sig, draw.CircleGlyph{}}, {insig, draw.RingGlyph{}}} {
		if len(set.xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(set.xys)
		if err != nil {
			return nil, fmt.Errorf("failed to plot estimates: %w", err)
		}
		s.Color, s.Shape, s.Radius = colorCoef, set.shape, vg.Points(4)
		p.Add(s)
	}

	p.Y.Tick.Marker = plot.ConstantTicks(labels)
	p.Y.Min, p.Y.Max = -0.5, float64(n)-0.5
	return p, nil
}

// RMSEPlot draws mean cross-validated RMSE per model as horizontal bars
// with +/- one standard deviation, in ranked order with the best on top.
func RMSEPlot(results []predict.CVResult) (*plot.Plot, error) {
	if len(results) == 0 {
		return nil, nil
	}
	p := plot.New()
	p.X.Label.Text = "Mean RMSE (cross-validated)"

	n := len(results)
	var errs whiskers
	var values plotter.XYLabels
	var labels []plot.Tick
	for i, r := range results {
		mean := r.Mean.RMSE
		if math.IsNaN(mean) {
			mean = 0
		}
		std := r.Std.RMSE
		if math.IsNaN(std) {
			std = 0
		}
		y := float64(n - 1 - i)

		bar, err := plotter.NewBarChart(plotter.Values{mean}, rowHeight/2)
		if err != nil {
			return nil, fmt.Errorf("failed to plot %s: %w", r.Model, err)
		}
		bar.Horizontal = true
		bar.XMin = y
		bar.LineStyle.Width = 0
		bar.Color = colorOther
		if i == 0 {
			bar.Color = colorBest
		}
		p.Add(bar)

		errs.XYs = append(errs.XYs, plotter.XY{X: mean, Y: y})
		errs.XErrors = append(errs.XErrors, struct{ Low, High float64 }{math.Min(std, mean), std})
		values.XYs = append(values.XYs, plotter.XY{X: mean + std, Y: y})
		values.Labels = append(values.Labels, " "+strconv.FormatFloat(r.Mean.RMSE, 'f', 3, 64))
		labels = append(labels, plot.Tick{Value: y, Label: r.Model})
	}

	bars, err := plotter.NewXErrorBars(errs)
	if err != nil {
		return nil, fmt.Errorf("failed to plot RMSE spread: %w", err)
	}
	p.Add(bars)

	text, err := plotter.NewLabels(values)
	if err != nil {
		return nil, fmt.Errorf("failed to label bars: %w", err)
	}
	p.Add(text)

	p.Y.Tick.Marker = plot.ConstantTicks(labels)
	p.Y.Min, p.Y.Max = -0.5, float64(n)-0.5
	p.X.Min = 0
	p.X.Max *= 1.15
	return p, nil
}

// inlineSVG draws p onto an SVG canvas of the given size and returns the
// <svg> element for embedding in the page.
func inlineSVG(p *plot.Plot, height vg.Length) (template.HTML, error) {
	if p == nil {
		return "", nil
	}
	c := vgsvg.NewWith(vgsvg.UseWH(chartWidth, height), vgsvg.EmbedFonts(false))
	p.Draw(draw.New(c))

	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("failed to write chart: %w", err)
	}
	out := buf.String()
	// drop the XML prolog, which has no place inside an HTML body
	if i := strings.Index(out, "<svg"); i > 0 {
		out = out[i:]
	}
	return template.HTML(out), nil
}

// rowsHeight sizes a chart with one row per item.
func rowsHeight(n int) vg.Length {
	return 2*vg.Centimeter + vg.Length(n)*rowHeight
}
