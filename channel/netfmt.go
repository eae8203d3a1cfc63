// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channel

import (
	"fmt"
	"strconv"
)

func ipv4String(ip [4]byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3])
}

func ipv6String(ip [16]byte) string {
	s := ""
	for i := 0; i < 16; i += 2 {
		if i > 0 {
			s += ":"
		}
		s += fmt.Sprintf("%02x%02x", ip[i], ip[i+1])
	}
	return s
}

func portString(port uint16) string {
	return strconv.Itoa(int(port))
}
