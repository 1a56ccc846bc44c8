// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "golang.org/x/sys/unix"

// syscallNumbers maps names accepted in allow-lists to syscall
// numbers. Only syscalls that exist on every supported architecture
// live here; per-architecture entries are added by the
// syscalls_linux_GOARCH files. Legacy names that vanished on arm64
// (open, stat, poll, dup2, ...) are deliberately absent from the
// shared table so a policy validated on one machine means the same
// thing on another.
var syscallNumbers = map[string]uintptr{
	"read":              unix.SYS_READ,
	"write":             unix.SYS_WRITE,
	"close":             unix.SYS_CLOSE,
	"fstat":             unix.SYS_FSTAT,
	"lseek":             unix.SYS_LSEEK,
	"mmap":              unix.SYS_MMAP,
	"mprotect":          unix.SYS_MPROTECT,
	"munmap":            unix.SYS_MUNMAP,
	"brk":               unix.SYS_BRK,
	"madvise":           unix.SYS_MADVISE,
	"mremap":            unix.SYS_MREMAP,
	"mlock":             unix.SYS_MLOCK,
	"munlock":           unix.SYS_MUNLOCK,
	"rt_sigaction":      unix.SYS_RT_SIGACTION,
	"rt_sigprocmask":    unix.SYS_RT_SIGPROCMASK,
	"rt_sigreturn":      unix.SYS_RT_SIGRETURN,
	"sigaltstack":       unix.SYS_SIGALTSTACK,
	"ioctl":             unix.SYS_IOCTL,
	"pread64":           unix.SYS_PREAD64,
	"pwrite64":          unix.SYS_PWRITE64,
	"readv":             unix.SYS_READV,
	"writev":            unix.SYS_WRITEV,
	"dup":               unix.SYS_DUP,
	"dup3":              unix.SYS_DUP3,
	"fcntl":             unix.SYS_FCNTL,
	"flock":             unix.SYS_FLOCK,
	"fsync":             unix.SYS_FSYNC,
	"fdatasync":         unix.SYS_FDATASYNC,
	"ftruncate":         unix.SYS_FTRUNCATE,
	"openat":            unix.SYS_OPENAT,
	"statx":             unix.SYS_STATX,
	"faccessat":         unix.SYS_FACCESSAT,
	"faccessat2":        unix.SYS_FACCESSAT2,
	"readlinkat":        unix.SYS_READLINKAT,
	"unlinkat":          unix.SYS_UNLINKAT,
	"mkdirat":           unix.SYS_MKDIRAT,
	"renameat":          unix.SYS_RENAMEAT,
	"linkat":            unix.SYS_LINKAT,
	"symlinkat":         unix.SYS_SYMLINKAT,
	"fchmodat":          unix.SYS_FCHMODAT,
	"fchownat":          unix.SYS_FCHOWNAT,
	"getdents64":        unix.SYS_GETDENTS64,
	"getcwd":            unix.SYS_GETCWD,
	"chdir":             unix.SYS_CHDIR,
	"fchdir":            unix.SYS_FCHDIR,
	"fchmod":            unix.SYS_FCHMOD,
	"fchown":            unix.SYS_FCHOWN,
	"umask":             unix.SYS_UMASK,
	"pipe2":             unix.SYS_PIPE2,
	"ppoll":             unix.SYS_PPOLL,
	"pselect6":          unix.SYS_PSELECT6,
	"epoll_create1":     unix.SYS_EPOLL_CREATE1,
	"epoll_ctl":         unix.SYS_EPOLL_CTL,
	"epoll_pwait":       unix.SYS_EPOLL_PWAIT,
	"eventfd2":          unix.SYS_EVENTFD2,
	"sched_yield":       unix.SYS_SCHED_YIELD,
	"sched_getaffinity": unix.SYS_SCHED_GETAFFINITY,
	"nanosleep":         unix.SYS_NANOSLEEP,
	"clock_gettime":     unix.SYS_CLOCK_GETTIME,
	"clock_getres":      unix.SYS_CLOCK_GETRES,
	"clock_nanosleep":   unix.SYS_CLOCK_NANOSLEEP,
	"gettimeofday":      unix.SYS_GETTIMEOFDAY,
	"times":             unix.SYS_TIMES,
	"getpid":            unix.SYS_GETPID,
	"getppid":           unix.SYS_GETPPID,
	"gettid":            unix.SYS_GETTID,
	"getuid":            unix.SYS_GETUID,
	"geteuid":           unix.SYS_GETEUID,
	"getgid":            unix.SYS_GETGID,
	"getegid":           unix.SYS_GETEGID,
	"getgroups":         unix.SYS_GETGROUPS,
	"setuid":            unix.SYS_SETUID,
	"setgid":            unix.SYS_SETGID,
	"setgroups":         unix.SYS_SETGROUPS,
	"setsid":            unix.SYS_SETSID,
	"setpgid":           unix.SYS_SETPGID,
	"getpgid":           unix.SYS_GETPGID,
	"capget":            unix.SYS_CAPGET,
	"capset":            unix.SYS_CAPSET,
	"prctl":             unix.SYS_PRCTL,
	"getrlimit":         unix.SYS_GETRLIMIT,
	"setrlimit":         unix.SYS_SETRLIMIT,
	"prlimit64":         unix.SYS_PRLIMIT64,
	"getrusage":         unix.SYS_GETRUSAGE,
	"sysinfo":           unix.SYS_SYSINFO,
	"uname":             unix.SYS_UNAME,
	"futex":             unix.SYS_FUTEX,
	"set_tid_address":   unix.SYS_SET_TID_ADDRESS,
	"set_robust_list":   unix.SYS_SET_ROBUST_LIST,
	"get_robust_list":   unix.SYS_GET_ROBUST_LIST,
	"rseq":              unix.SYS_RSEQ,
	"restart_syscall":   unix.SYS_RESTART_SYSCALL,
	"kill":              unix.SYS_KILL,
	"tgkill":            unix.SYS_TGKILL,
	"wait4":             unix.SYS_WAIT4,
	"exit":              unix.SYS_EXIT,
	"exit_group":        unix.SYS_EXIT_GROUP,
	"execve":            unix.SYS_EXECVE,
	"execveat":          unix.SYS_EXECVEAT,
	"clone":             unix.SYS_CLONE,
	"clone3":            unix.SYS_CLONE3,
	"getrandom":         unix.SYS_GETRANDOM,
	"memfd_create":      unix.SYS_MEMFD_CREATE,
	"socket":            unix.SYS_SOCKET,
	"socketpair":        unix.SYS_SOCKETPAIR,
	"connect":           unix.SYS_CONNECT,
	"accept4":           unix.SYS_ACCEPT4,
	"bind":              unix.SYS_BIND,
	"listen":            unix.SYS_LISTEN,
	"sendto":            unix.SYS_SENDTO,
	"recvfrom":          unix.SYS_RECVFROM,
	"sendmsg":           unix.SYS_SENDMSG,
	"recvmsg":           unix.SYS_RECVMSG,
	"shutdown":          unix.SYS_SHUTDOWN,
	"getsockname":       unix.SYS_GETSOCKNAME,
	"getpeername":       unix.SYS_GETPEERNAME,
	"setsockopt":        unix.SYS_SETSOCKOPT,
	"getsockopt":        unix.SYS_GETSOCKOPT,
	"mount":             unix.SYS_MOUNT,
	"umount2":           unix.SYS_UMOUNT2,
	"chroot":            unix.SYS_CHROOT,
	"unshare":           unix.SYS_UNSHARE,
	"setns":             unix.SYS_SETNS,
	"seccomp":           unix.SYS_SECCOMP,
}

// syscallNumber resolves an allow-list name on the current
// architecture.
func syscallNumber(name string) (uintptr, bool) {
	nr, ok := syscallNumbers[name]
	return nr, ok
}

// setupTail is the set of syscalls the child itself still needs after
// the filter is installed: the remaining pipeline stages (resource
// limits, privilege drop, irreversibility check), the final execve,
// and the Go runtime machinery that carries them. Every filter unions
// this tail into the allow-list; without it the child would be killed
// by its own policy before the target program ever starts. The tail is
// gone the instant execve replaces the process image in the sense that
// the target inherits the filter but none of the Go runtime that
// needed these entries.
var setupTail = []string{
	// remaining pipeline stages
	"setrlimit", "prlimit64", "getrlimit",
	"prctl", "capget", "capset",
	"setgroups", "setgid", "setuid",
	"getuid", "geteuid", "getgid", "getegid",
	"execve",
	// error reporting and exit
	"write", "exit", "exit_group",
	// Go runtime
	"futex", "sched_yield", "sched_getaffinity",
	"mmap", "munmap", "madvise", "mprotect", "brk",
	"nanosleep", "clock_nanosleep", "clock_gettime", "gettimeofday",
	"rt_sigaction", "rt_sigprocmask", "rt_sigreturn", "sigaltstack",
	"gettid", "getpid", "tgkill",
	"epoll_pwait", "epoll_ctl",
	"close", "read",
	"restart_syscall",
}
