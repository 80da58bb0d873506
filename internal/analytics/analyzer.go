package analytics

import (
	"math"
	"sync"
	"time"
)

// SpeedWindow holds the sliding window of smoothed speeds
type SpeedWindow struct {
	download   []float64
	upload     []float64
	timestamps []time.Time
	maxSize    int
}

// Analyzer keeps the speed history and flags anomalous samples by z-score
type Analyzer struct {
	mu               sync.RWMutex
	window           *SpeedWindow
	anomalyThreshold float64
	analyzed         int
	anomalies        int
}

// SpeedSample one point of the traffic chart
type SpeedSample struct {
	Timestamp time.Time `json:"timestamp"`
	Download  float64   `json:"download"`
	Upload    float64   `json:"upload"`
}

// SpeedResult rolling statistics after adding a sample
type SpeedResult struct {
	Timestamp          time.Time `json:"timestamp"`
	RollingAvgDownload float64   `json:"rollingAvgDownload"`
	RollingAvgUpload   float64   `json:"rollingAvgUpload"`
	StdDevDownload     float64   `json:"stdDevDownload"`
	StdDevUpload       float64   `json:"stdDevUpload"`
	IsAnomaly          bool      `json:"isAnomaly"`
	AnomalyScore       float64   `json:"anomalyScore"`
	AnomalyType        string    `json:"anomalyType,omitempty"`
}

// Anomaly types
const (
	DownloadSpike   = "DOWNLOAD_SPIKE"
	DownloadDrop    = "DOWNLOAD_DROP"
	UploadSpike     = "UPLOAD_SPIKE"
	UploadDrop      = "UPLOAD_DROP"
	MultipleAnomaly = "MULTIPLE_ANOMALY"
)

// NewAnalyzer creates an analyzer keeping windowSize points
func NewAnalyzer(windowSize int, anomalyThreshold float64) *Analyzer {
	if windowSize <= 0 {
		windowSize = 20
	}
	return &Analyzer{
		window: &SpeedWindow{
			download:   make([]float64, 0, windowSize),
			upload:     make([]float64, 0, windowSize),
			timestamps: make([]time.Time, 0, windowSize),
			maxSize:    windowSize,
		},
		anomalyThreshold: anomalyThreshold,
	}
}

// Analyze appends the sample, evicting the oldest point when the window is
// full, and scores the sample against the window.
func (a *Analyzer) Analyze(s SpeedSample) SpeedResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	w := a.window
	w.download = append(w.download, s.Download)
	w.upload = append(w.upload, s.Upload)
	w.timestamps = append(w.timestamps, s.Timestamp)

	if len(w.download) > w.maxSize {
		w.download = w.download[1:]
		w.upload = w.upload[1:]
		w.timestamps = w.timestamps[1:]
	}

	avgDown := calculateAverage(w.download)
	avgUp := calculateAverage(w.upload)

	stdDown := calculateStdDev(w.download, avgDown)
	stdUp := calculateStdDev(w.upload, avgUp)

	var zDown, zUp float64
	if stdDown > 0 {
		zDown = (s.Download - avgDown) / stdDown
	}
	if stdUp > 0 {
		zUp = (s.Upload - avgUp) / stdUp
	}

	isAnomaly := false
	anomalyType := ""

	if math.Abs(zDown) > a.anomalyThreshold {
		isAnomaly = true
		if zDown > 0 {
			anomalyType = DownloadSpike
		} else {
			anomalyType = DownloadDrop
		}
	}

	if math.Abs(zUp) > a.anomalyThreshold {
		isAnomaly = true
		if anomalyType != "" {
			anomalyType = MultipleAnomaly
		} else if zUp > 0 {
			anomalyType = UploadSpike
		} else {
			anomalyType = UploadDrop
		}
	}

	a.analyzed++
	if isAnomaly {
		a.anomalies++
	}

	return SpeedResult{
		Timestamp:          s.Timestamp,
		RollingAvgDownload: avgDown,
		RollingAvgUpload:   avgUp,
		StdDevDownload:     stdDown,
		StdDevUpload:       stdUp,
		IsAnomaly:          isAnomaly,
		AnomalyScore:       math.Max(math.Abs(zDown), math.Abs(zUp)),
		AnomalyType:        anomalyType,
	}
}

// History returns the window, oldest first
func (a *Analyzer) History() []SpeedSample {
	a.mu.RLock()
	defer a.mu.RUnlock()

	w := a.window
	out := make([]SpeedSample, len(w.download))
	for i := range w.download {
		out[i] = SpeedSample{Timestamp: w.timestamps[i], Download: w.download[i], Upload: w.upload[i]}
	}
	return out
}

func calculateAverage(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateStdDev population standard deviation
func calculateStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}

// GetStats returns analyzer counters
func (a *Analyzer) GetStats() map[string]interface{} {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return map[string]interface{}{
		"window_size":   a.window.maxSize,
		"points":        len(a.window.download),
		"threshold":     a.anomalyThreshold,
		"samples_total": a.analyzed,
		"anomalies":     a.anomalies,
	}
}
