// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package fabric

// RaceEnabled is true when the race detector is active.
// Used by tests to skip concurrent channel and registry tests, which
// trigger false positives because slot memory is ordered through a
// separate atomic position word.
const RaceEnabled = true
