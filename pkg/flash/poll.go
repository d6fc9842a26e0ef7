/*
   FlashMasta - flash cartridge programmer suite
   Copyright (c) 2026, 7400 Circuits

   This file is part of FlashMasta.

   FlashMasta is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   FlashMasta is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with FlashMasta. If not, see <http://www.gnu.org/licenses/>.
*/

package flash

import (
	"errors"
	"time"
)

// ErrPollExhausted is returned when a hardware condition did not come true
// within the attempt bound of the governing PollPolicy.
var ErrPollExhausted = errors.New("poll attempts exhausted")

/*
	PollPolicy bounds the busy wait loops that watch the chip for program
	and erase completion. Interval is the pause between probes, Attempts
	the upper bound on probes before giving up with ErrPollExhausted.

	Sleep can be replaced for tests; when nil, time.Sleep is used.
*/
type PollPolicy struct {
	Interval time.Duration
	Attempts int
	Sleep    func(time.Duration)
}

// DefaultPollPolicy allows several seconds of polling, which covers block
// erase times of the supported chips with margin.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Interval: 5 * time.Millisecond,
		Attempts: 2000,
	}
}

// Wait probes the given condition until it reports true, pausing Interval
// between probes. It fails with ErrPollExhausted after Attempts probes,
// or earlier with the probe's own error.
func (p PollPolicy) Wait(probe func() (bool, error)) error {

	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	for attempt := 0; attempt < p.Attempts; attempt++ {
		done, err := probe()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		sleep(p.Interval)
	}

	return ErrPollExhausted
}
