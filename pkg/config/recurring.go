package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Epoch is the wall-clock instant of virtual time 0. One unit of virtual
// time is one second.
var Epoch = time.Date(2000, time.January, 3, 0, 0, 0, 0, time.UTC)

// maxInstances bounds how many jobs a single template may expand into
const maxInstances = 100000

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// expandRecurring generates one job spec per activation of spec.Cron in
// [spec.SubmitTime, spec.Until]. Instances are named "<name>-<k>", k from 1.
func expandRecurring(spec JobSpec) ([]JobSpec, error) {
	if spec.Until <= 0 {
		return nil, fmt.Errorf("%w: job %s: cron template needs a positive until", ErrInvalid, spec.Name)
	}
	schedule, err := cronParser.Parse(spec.Cron)
	if err != nil {
		return nil, fmt.Errorf("%w: job %s: failed to parse cron schedule %q: %v", ErrInvalid, spec.Name, spec.Cron, err)
	}

	instances := []JobSpec{}
	end := Epoch.Add(time.Duration(spec.Until) * time.Second)
	// Next is strictly after its argument, so start one second early to
	// include an activation at the first instant
	current := Epoch.Add(time.Duration(spec.SubmitTime)*time.Second - time.Second)
	for {
		nextRun := schedule.Next(current)
		if nextRun.IsZero() || nextRun.After(end) {
			break
		}
		if len(instances) == maxInstances {
			return nil, fmt.Errorf("%w: job %s: cron template expands to more than %d jobs", ErrInvalid, spec.Name, maxInstances)
		}

		instance := spec
		instance.Name = fmt.Sprintf("%s-%d", spec.Name, len(instances)+1)
		instance.SubmitTime = int64(nextRun.Sub(Epoch) / time.Second)
		instance.Cron = ""
		instance.Until = 0
		instances = append(instances, instance)

		current = nextRun
	}
	return instances, nil
}
