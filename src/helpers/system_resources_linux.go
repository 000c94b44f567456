//go:build linux

package helpers

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// systemMemoryMB returns MemTotal and MemAvailable from /proc/meminfo in MB.
func systemMemoryMB() (total int, available int) {
	file, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		kb, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = kb / 1024
		case "MemAvailable:":
			available = kb / 1024
		}
	}
	return total, available
}
