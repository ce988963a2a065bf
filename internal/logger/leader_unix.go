//go:build !windows

package logger

import "syscall"

func groupLeader() bool {
	return syscall.Getpgrp() == syscall.Getpid()
}
