package train

import "fmt"

// Schedule fixes when the loop tests and logs.
type Schedule struct {
	ItersPerEpoch   int // ceil(train examples / batch size)
	MaxIter         int // Epochs * ItersPerEpoch
	TestInterval    int // iterations between evaluations
	TestIter        int // test batches averaged per evaluation
	DisplayInterval int // iterations between training loss reports
}

// NewSchedule derives the schedule from dataset sizes and run length.
// A zero displayInterval selects max(1, TestInterval/10).
func NewSchedule(trainN, testN, batchSize, epochs, testsPerEpoch, displayInterval int) (Schedule, error) {
	switch {
	case trainN <= 0 || testN <= 0:
		return Schedule{}, fmt.Errorf("schedule: empty dataset (train %d, test %d)", trainN, testN)
	case batchSize <= 0:
		return Schedule{}, fmt.Errorf("schedule: invalid batch size %d", batchSize)
	case epochs <= 0:
		return Schedule{}, fmt.Errorf("schedule: invalid epochs %d", epochs)
	case testsPerEpoch <= 0:
		return Schedule{}, fmt.Errorf("schedule: invalid tests per epoch %d", testsPerEpoch)
	case displayInterval < 0:
		return Schedule{}, fmt.Errorf("schedule: invalid display interval %d", displayInterval)
	}

	s := Schedule{ItersPerEpoch: (trainN + batchSize - 1) / batchSize}
	s.MaxIter = epochs * s.ItersPerEpoch
	s.TestInterval = max(1, s.ItersPerEpoch/testsPerEpoch)
	s.TestIter = max(1, testN/batchSize)
	s.DisplayInterval = displayInterval
	if s.DisplayInterval == 0 {
		s.DisplayInterval = max(1, s.TestInterval/10)
	}
	return s, nil
}

// IsTest reports whether iteration it starts with an evaluation.
func (s Schedule) IsTest(it int) bool {
	return it%s.TestInterval == 0
}

// IsDisplay reports whether the training loss of iteration it is logged.
func (s Schedule) IsDisplay(it int) bool {
	return it%s.DisplayInterval == 0
}

// Epoch returns the (fractional) epoch reached at iteration it.
func (s Schedule) Epoch(it int) float64 {
	return float64(it) / float64(s.ItersPerEpoch)
}
