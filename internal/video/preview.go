package video

import "gocv.io/x/gocv"

// Preview is the optional debug display: one window showing the best
// available annotated frame, with a keypress poll for the interrupt
// key. Headless sessions never construct one.
type Preview struct {
	win *gocv.Window
}

// NewPreview opens the preview window.
func NewPreview(title string) *Preview {
	return &Preview{win: gocv.NewWindow(title)}
}

// Show displays a frame. No-op on a closed preview.
func (p *Preview) Show(f *Frame) {
	if p == nil || p.win == nil || f == nil || f.Mat.Empty() {
		return
	}
	p.win.IMShow(f.Mat)
}

// Interrupted polls the window event loop for ~1ms and reports whether
// the quit key was pressed. The poll also services window repaints, so
// it must be called every loop iteration while a preview is open.
func (p *Preview) Interrupted() bool {
	if p == nil || p.win == nil {
		return false
	}
	return p.win.WaitKey(1) == 'q'
}

// Close destroys the window.
func (p *Preview) Close() error {
	if p == nil || p.win == nil {
		return nil
	}
	win := p.win
	p.win = nil
	return win.Close()
}
