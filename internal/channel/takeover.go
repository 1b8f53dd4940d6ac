package channel

// TakeoverData is the payload handed to a successor process so it can
// adopt a running mount's kernel channel without the client observing an
// interruption: the mount path, client directory, any bind mounts, the
// preserved FUSE device (if the channel is FUSE and the kernel side is
// still valid), the driver's init settings, and a serialized inode map.
// The inode map bytes are filled in later, once shutdown has quiesced the
// mount enough to serialize it safely.
type TakeoverData struct {
	MountPath          string
	ClientDir          string
	BindMounts         []string
	Kind               Kind
	FUSEDeviceFD       int
	FUSEDeviceValid    bool
	InitSettings       []byte
	SerializedInodeMap []byte
	Unmounted          bool
}

// BuildTakeoverPayload assembles a TakeoverData from a channel's state at
// completion time. kernelSideValid means the kernel still considers the
// mount attached (the FUSE device wasn't invalidated, the NFS mount wasn't
// unregistered); deviceFD only means something when kind is FUSE.
func BuildTakeoverPayload(mountPath, clientDir string, bindMounts []string, kind Kind, deviceFD int, kernelSideValid bool, initSettings []byte) TakeoverData {
	data := TakeoverData{
		MountPath:    mountPath,
		ClientDir:    clientDir,
		BindMounts:   bindMounts,
		Kind:         kind,
		InitSettings: initSettings,
		Unmounted:    !kernelSideValid,
	}
	if kind == KindFUSE && kernelSideValid {
		data.FUSEDeviceFD = deviceFD
		data.FUSEDeviceValid = true
	}
	return data
}

// WithSerializedInodeMap returns a copy of data with its inode map payload
// set, for the shutdown step that fills it in after the channel itself has
// already completed.
func (data TakeoverData) WithSerializedInodeMap(serialized []byte) TakeoverData {
	data.SerializedInodeMap = serialized
	return data
}
