package residual

// Tracker keeps the fixed-length window of normalized residuals fed to the
// correction model. One tracker belongs to one forecast run.
type Tracker struct {
	size   int
	scaler Scaler
	window []float64
}

func NewTracker(size int, scaler Scaler) *Tracker {
	return &Tracker{size: size, scaler: scaler, window: make([]float64, size)}
}

// Initialize normalizes the raw seed residuals into the window. Only the
// newest size values are kept; a short seed is left-padded with zeros, the
// normalized value of an average residual.
func (t *Tracker) Initialize(seedRaw []float64) {
	if len(seedRaw) > t.size {
		seedRaw = seedRaw[len(seedRaw)-t.size:]
	}
	pad := t.size - len(seedRaw)
	for i := 0; i < pad; i++ {
		t.window[i] = 0
	}
	for i, r := range seedRaw {
		t.window[pad+i] = t.scaler.Normalize(r)
	}
}

// Current returns a copy of the window, oldest first.
func (t *Tracker) Current() []float64 {
	return append([]float64(nil), t.window...)
}

// Push normalizes a raw residual, appends it and evicts the oldest value.
func (t *Tracker) Push(raw float64) {
	copy(t.window, t.window[1:])
	t.window[t.size-1] = t.scaler.Normalize(raw)
}

func (t *Tracker) Len() int { return len(t.window) }

func (t *Tracker) Scaler() Scaler { return t.scaler }
