package server

import (
	"bytes"

	"github.com/rs/zerolog/log"
)

// autoFireSensitivity maps a sensitivity level to the longest hold, in
// actions, that still counts as a machine-timed press and the number of
// identical press/release cycles needed to report.
var autoFireSensitivity = [...]struct{ maxDelay, minReps int }{
	{0, 0},
	{2, 13},
	{3, 11},
	{4, 9},
	{5, 7},
	{6, 5},
}

// AutoFireScanner looks for two inputs alternating with a fixed short
// period, which human players do not produce. One scanner serves one game;
// calls are serialized by the game's lock.
type AutoFireScanner struct {
	maxDelay int
	minReps  int
	report   func(userID uint16, playerNumber int)
	jobs     []*autoFireJob
}

type autoFireJob struct {
	userID   uint16
	bpa      int
	buf      []byte
	stopped  bool
	reported bool
}

// NewAutoFireScanner returns a scanner for sensitivity 1..5; any other value
// yields a scanner that never reports.
func NewAutoFireScanner(sensitivity int, report func(userID uint16, playerNumber int)) *AutoFireScanner {
	s := &AutoFireScanner{report: report}
	if sensitivity > 0 && sensitivity < len(autoFireSensitivity) {
		s.maxDelay = autoFireSensitivity[sensitivity].maxDelay
		s.minReps = autoFireSensitivity[sensitivity].minReps
	}
	return s
}

func (s *AutoFireScanner) enabled() bool { return s.minReps > 0 }

// windowSize is how many bytes are collected before one scan.
func (s *AutoFireScanner) windowSize() int { return (s.maxDelay + 1) * s.minReps * 5 }

func (s *AutoFireScanner) Start(numPlayers int) {
	if !s.enabled() {
		return
	}
	s.jobs = make([]*autoFireJob, numPlayers)
}

func (s *AutoFireScanner) AddPlayer(userID uint16, playerNumber int) {
	if !s.enabled() || playerNumber < 1 || playerNumber > len(s.jobs) {
		return
	}
	s.jobs[playerNumber-1] = &autoFireJob{userID: userID, buf: make([]byte, 0, s.windowSize())}
}

func (s *AutoFireScanner) AddData(playerNumber int, data []byte, bytesPerAction int) {
	if !s.enabled() || playerNumber < 1 || playerNumber > len(s.jobs) || bytesPerAction <= 0 {
		return
	}
	job := s.jobs[playerNumber-1]
	if job == nil || job.stopped || job.reported {
		return
	}
	if job.bpa <= 0 {
		job.bpa = bytesPerAction
	}
	limit := s.windowSize()
	for len(data) > 0 {
		n := min(limit-len(job.buf), len(data))
		job.buf = append(job.buf, data[:n]...)
		data = data[n:]
		if len(job.buf) < limit {
			return
		}
		if s.scan(job.buf, job.bpa) {
			job.reported = true
			log.Info().Uint16("user_id", job.userID).Int("player_number", playerNumber).Msg("autofire detected")
			if s.report != nil {
				s.report(job.userID, playerNumber)
			}
			return
		}
		job.buf = job.buf[:0]
	}
}

func (s *AutoFireScanner) Stop(playerNumber int) {
	if playerNumber < 1 || playerNumber > len(s.jobs) || s.jobs[playerNumber-1] == nil {
		return
	}
	s.jobs[playerNumber-1].stopped = true
}

func (s *AutoFireScanner) StopAll() {
	for _, job := range s.jobs {
		if job != nil {
			job.stopped = true
		}
	}
}

// scan tracks the two most recent distinct inputs A and B. A run of one
// input that ends with the same length as its previous run, no longer than
// maxDelay, extends that input's streak; both streaks reaching minReps is
// autofire.
func (s *AutoFireScanner) scan(data []byte, bpa int) bool {
	var a, b, last []byte
	var aSeq, lastASeq, aStreak int
	var bSeq, lastBSeq, bStreak int
	for i := 0; i+bpa <= len(data); i += bpa {
		this := data[i : i+bpa]
		switch {
		case a == nil:
			a, aSeq = this, 1
		case bytes.Equal(this, a):
			if bytes.Equal(this, last) {
				aSeq++
			} else {
				if lastASeq == aSeq && aSeq <= s.maxDelay {
					aStreak++
				} else {
					aStreak = 0
				}
				lastASeq, aSeq = aSeq, 1
			}
		case b == nil:
			b, bSeq = this, 1
		case bytes.Equal(this, b):
			if bytes.Equal(this, last) {
				bSeq++
			} else {
				if lastBSeq == bSeq && bSeq <= s.maxDelay {
					bStreak++
				} else {
					bStreak = 0
				}
				lastBSeq, bSeq = bSeq, 1
			}
		default:
			a, aSeq, aStreak = last, 1, 0
			b, bSeq, bStreak = this, 0, 0
		}
		last = this
		if aStreak >= s.minReps && bStreak >= s.minReps {
			return true
		}
	}
	return false
}
