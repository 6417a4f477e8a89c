package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"datasync/internal/element"
	"datasync/internal/pkg/metrics"
)

func TestTaskCollector_CountAndCauses(t *testing.T) {
	const jobID = "collector-test"
	c := NewTaskCollector(jobID, nil)
	before := testutil.ToFloat64(metrics.DirtyRecords.WithLabelValues(jobID))

	var wg sync.WaitGroup
	for i := 0; i < maxKeptCauses+10; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			c.CollectDirtyRecord(element.NewRecord(element.NewLongColumn(int64(i))), fmt.Errorf("cause %d", i))
		}()
	}
	wg.Wait()
	c.CollectDirtyRecord(element.NewRecord(), nil)

	if c.Count() != maxKeptCauses+11 {
		t.Errorf("Expected %d dirty records, got %d", maxKeptCauses+11, c.Count())
	}
	if len(c.Causes()) != maxKeptCauses {
		t.Errorf("Causes should be capped at %d, got %d", maxKeptCauses, len(c.Causes()))
	}
	samples := c.Samples()
	if len(samples) != maxKeptCauses || samples[0].Record == nil {
		t.Errorf("Samples should keep the first %d dirty records, got %d", maxKeptCauses, len(samples))
	}
	after := testutil.ToFloat64(metrics.DirtyRecords.WithLabelValues(jobID))
	if after-before != maxKeptCauses+11 {
		t.Errorf("Dirty counter increased by %v, expected %d", after-before, maxKeptCauses+11)
	}
}

func TestTaskCollector_Written(t *testing.T) {
	c := NewTaskCollector("written-test", nil)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.CollectWritten(3)
		}()
	}
	wg.Wait()
	if c.Written() != 30 {
		t.Errorf("Expected 30 written, got %d", c.Written())
	}
}
