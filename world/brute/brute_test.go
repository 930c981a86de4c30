// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package brute

import (
	"testing"

	"github.com/SoftbearStudios/sweep/world"
)

func TestBruteBroadphase(t *testing.T) {
	world.Test(t, func() world.Broadphase {
		return New()
	})
}

func BenchmarkBruteBroadphase(b *testing.B) {
	world.Bench(b, func() world.Broadphase {
		return New()
	}, 1024)
}
