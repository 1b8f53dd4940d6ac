/*
Package channel implements the variant kernel-channel attach/detach
protocol: mounting to and cleanly detaching from a kernel filesystem
driver, with cancellation handling, takeover (handing the kernel file
descriptor to a successor process), and failure rollback.

fuse.go wraps github.com/hanwen/go-fuse/v2 for Linux/macOS-direct mounts.
projection.go wraps github.com/winfsp/cgofuse for the Windows projection
variant. nfs.go is a loopback NFS registration stub with no teacher
analog. handshake.go implements the once-set-never-cleared mount/unmount
promise pair every variant waits on. takeover.go builds the payload a
successor process needs to adopt a running channel without a client-visible
interruption.
*/
package channel
