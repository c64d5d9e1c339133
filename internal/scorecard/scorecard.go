// Package scorecard renders a match snapshot as a PNG with one health bar per
// participant.
package scorecard

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	"github.com/park285/duel-arena/internal/domain"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	cardWidth    = 480
	cardHeight   = 200
	sideMargin   = 24
	headerHeight = 44
	rowHeight    = 56
	barHeight    = 18
	barRadius    = 6
	iconSize     = 18
)

var (
	backgroundColor = color.NRGBA{R: 28, G: 31, B: 46, A: 255}
	barTrackColor   = color.NRGBA{R: 52, G: 56, B: 78, A: 255}
	barHighColor    = color.NRGBA{R: 70, G: 196, B: 120, A: 255}
	barMidColor     = color.NRGBA{R: 240, G: 190, B: 70, A: 255}
	barLowColor     = color.NRGBA{R: 229, G: 72, B: 77, A: 255}
	textPrimary     = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	textSecondary   = color.NRGBA{R: 170, G: 176, B: 204, A: 255}
)

// Render draws snap. startingHealth sets the full-bar value; when it is not
// positive the larger of 100 and the current health values is used.
func Render(ctx context.Context, snap domain.MatchSnapshot, startingHealth int) ([]byte, error) {
	if snap.ID == "" {
		return nil, fmt.Errorf("snapshot has no match id")
	}
	full := fullHealth(snap, startingHealth)

	img := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	drawText(drawer, sideMargin, 28, headerLine(snap), textPrimary)

	for i, p := range snap.Participants {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		top := headerHeight + i*rowHeight
		if err := drawParticipant(img, drawer, snap, p, top, full); err != nil {
			return nil, err
		}
	}
	drawText(drawer, sideMargin, cardHeight-18, statusLine(snap), textSecondary)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawParticipant(img *image.RGBA, drawer *font.Drawer, snap domain.MatchSnapshot, p domain.ParticipantState, top, full int) error {
	label := fmt.Sprintf("%s  %d/%d  dmg %d", displayName(p), p.Health, full, p.DamageDealt)
	drawText(drawer, sideMargin+iconSize+8, top+14, label, textPrimary)

	icon := "heart"
	if snap.State == domain.StateFinished && snap.Winner == p.ID {
		icon = "crown"
	}
	ic, err := renderIcon(icon, iconSize)
	if err != nil {
		return err
	}
	at := image.Pt(sideMargin, top+2)
	imagedraw.Draw(img, image.Rectangle{Min: at, Max: at.Add(image.Pt(iconSize, iconSize))}, ic, image.Point{}, imagedraw.Over)

	track := image.Rect(sideMargin, top+24, cardWidth-sideMargin, top+24+barHeight)
	drawRoundedPanel(img, track, barRadius, barTrackColor)
	if w := barWidth(p.Health, full, track.Dx()); w > 0 {
		fill := image.Rect(track.Min.X, track.Min.Y, track.Min.X+w, track.Max.Y)
		drawRoundedPanel(img, fill, barRadius, barColor(p.Health, full))
	}
	return nil
}

func fullHealth(snap domain.MatchSnapshot, startingHealth int) int {
	if startingHealth > 0 {
		return startingHealth
	}
	full := 100
	for _, p := range snap.Participants {
		if p.Health > full {
			full = p.Health
		}
	}
	return full
}

func barWidth(health, full, track int) int {
	if health <= 0 || full <= 0 {
		return 0
	}
	if health >= full {
		return track
	}
	return track * health / full
}

func barColor(health, full int) color.Color {
	switch ratio := float64(health) / float64(full); {
	case ratio > 0.5:
		return barHighColor
	case ratio > 0.2:
		return barMidColor
	default:
		return barLowColor
	}
}

func headerLine(snap domain.MatchSnapshot) string {
	id := snap.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s vs %s  #%s", displayName(snap.Participants[0]), displayName(snap.Participants[1]), id)
}

func statusLine(snap domain.MatchSnapshot) string {
	moves := len(snap.Moves)
	if snap.State == domain.StateFinished {
		return fmt.Sprintf("%s wins (%s) after %d moves", nameFor(snap, snap.Winner), snap.EndReason, moves)
	}
	line := fmt.Sprintf("%s to move, %d moves played", nameFor(snap, snap.Turn), moves)
	if snap.MoveCap > 0 {
		line += fmt.Sprintf(" of %d", snap.MoveCap)
	}
	return line
}

func nameFor(snap domain.MatchSnapshot, playerID string) string {
	for _, p := range snap.Participants {
		if p.ID == playerID {
			return displayName(p)
		}
	}
	return playerID
}

func displayName(p domain.ParticipantState) string {
	if n := strings.TrimSpace(p.Name); n != "" {
		return n
	}
	return p.ID
}

func drawText(drawer *font.Drawer, x, baseline int, text string, clr color.Color) {
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if rect.Empty() {
		return
	}
	if r := min(rect.Dx(), rect.Dy()) / 2; radius > r {
		radius = r
	}
	fill := image.NewUniform(clr)
	if radius <= 0 {
		imagedraw.Draw(img, rect, fill, image.Point{}, imagedraw.Over)
		return
	}
	imagedraw.Draw(img, image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	for _, c := range []image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	} {
		drawDisc(img, c, radius, clr)
	}
}

func drawDisc(img *image.RGBA, center image.Point, radius int, clr color.Color) {
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				img.Set(center.X+dx, center.Y+dy, clr)
			}
		}
	}
}
