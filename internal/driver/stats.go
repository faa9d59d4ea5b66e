package driver

import "time"

type Stats struct {
	Iterations  int
	Presented   int
	Recreations int
	// ImageWaits counts extra waits on another slot's fence before reusing
	// an image's command buffer.
	ImageWaits int
	// Submissions counts submissions per swapchain image index.
	Submissions map[int]int

	MaxFenceWait   time.Duration
	TotalFenceWait time.Duration
	Elapsed        time.Duration
}

func (s *Stats) observeFenceWait(wait time.Duration) {
	s.TotalFenceWait += wait
	if wait > s.MaxFenceWait {
		s.MaxFenceWait = wait
	}
}

func (s Stats) clone() Stats {
	submissions := make(map[int]int, len(s.Submissions))
	for image, count := range s.Submissions {
		submissions[image] = count
	}
	s.Submissions = submissions
	return s
}
