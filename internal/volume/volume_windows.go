//go:build windows

package volume

import (
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"codeberg.org/mutker/hostlink/internal/errors"
	"codeberg.org/mutker/hostlink/internal/provider"
	"github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"
)

var (
	clsidMMDeviceEnumerator         = ole.NewGUID("{BCDE0395-E52F-467C-8E3D-C4579291692E}")
	iidIMMDeviceEnumerator          = ole.NewGUID("{A95664D2-9614-4F35-A746-DE8DB63617E6}")
	iidIAudioEndpointVolume         = ole.NewGUID("{5CDF2C82-841E-4546-9722-0CF74078229A}")
	iidIAudioEndpointVolumeCallback = ole.NewGUID("{657804FA-D6AD-4496-8A60-352752AF4F89}")
)

const (
	eRender     = 0
	eMultimedia = 1
	clsctxAll   = 0x17

	sOK             = 0x0
	sFalse          = 0x1
	eNoInterface    = 0x80004002
	rpcEChangedMode = 0x80010106
)

// vtable slots, counted from IUnknown::QueryInterface
const (
	slotRelease                       = 2
	slotGetDefaultAudioEndpoint       = 4 // IMMDeviceEnumerator
	slotActivate                      = 3 // IMMDevice
	slotRegisterControlChangeNotify   = 3 // IAudioEndpointVolume
	slotUnregisterControlChangeNotify = 4
	slotGetMasterVolumeLevelScalar    = 9
)

// comObject is any COM interface pointer: a pointer to a vtable pointer
type comObject struct {
	vtbl *[16]uintptr
}

func (o *comObject) call(slot int, args ...uintptr) error {
	hr, _, _ := syscall.SyscallN(o.vtbl[slot], append([]uintptr{uintptr(unsafe.Pointer(o))}, args...)...)
	if int32(hr) < 0 {
		return ole.NewError(hr)
	}

	return nil
}

func (o *comObject) release() {
	syscall.SyscallN(o.vtbl[slotRelease], uintptr(unsafe.Pointer(o)))
}

// coInitialize joins the calling thread to the multithreaded apartment. The
// returned flag tells whether CoUninitialize must be called to balance it.
func coInitialize() (bool, error) {
	err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED)
	if err == nil {
		return true, nil
	}

	var oleErr *ole.OleError
	if errors.As(err, &oleErr) {
		switch oleErr.Code() {
		case sFalse:
			return true, nil
		case rpcEChangedMode:
			return false, nil
		}
	}

	return false, err
}

// openEndpoint activates IAudioEndpointVolume on the default render device
func openEndpoint() (*comObject, error) {
	unknown, err := ole.CreateInstance(clsidMMDeviceEnumerator, iidIMMDeviceEnumerator)
	if err != nil {
		return nil, err
	}
	enumerator := (*comObject)(unsafe.Pointer(unknown))
	defer enumerator.release()

	var device *comObject
	if err := enumerator.call(slotGetDefaultAudioEndpoint, eRender, eMultimedia, uintptr(unsafe.Pointer(&device))); err != nil {
		return nil, err
	}
	defer device.release()

	var endpoint *comObject
	if err := device.call(slotActivate,
		uintptr(unsafe.Pointer(iidIAudioEndpointVolume)), clsctxAll, 0, uintptr(unsafe.Pointer(&endpoint)),
	); err != nil {
		return nil, err
	}

	return endpoint, nil
}

func masterScalar(endpoint *comObject) (float32, error) {
	var level float32
	if err := endpoint.call(slotGetMasterVolumeLevelScalar, uintptr(unsafe.Pointer(&level))); err != nil {
		return 0, err
	}

	return level, nil
}

type coreAudio struct{}

// NewSource returns the Windows Core Audio volume source
func NewSource() Source {
	return coreAudio{}
}

func (coreAudio) Current() (float32, error) {
	errFactory := errors.New()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	uninit, err := coInitialize()
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrSourceUnavailable, err)
	}
	if uninit {
		defer ole.CoUninitialize()
	}

	endpoint, err := openEndpoint()
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrSourceUnavailable, err)
	}
	defer endpoint.release()

	level, err := masterScalar(endpoint)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrReadFailed, err)
	}

	return level, nil
}

// Watch runs on the provider's locked thread, which keeps the apartment
// membership until Unregister.
func (coreAudio) Watch(n provider.Notifier[float32]) (provider.Registration, error) {
	errFactory := errors.New()

	uninit, err := coInitialize()
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrSourceUnavailable, err)
	}

	endpoint, err := openEndpoint()
	if err != nil {
		if uninit {
			ole.CoUninitialize()
		}
		return nil, errFactory.Wrap(errors.ErrSourceUnavailable, err)
	}

	cb := newEndpointCallback(n)
	if err := endpoint.call(slotRegisterControlChangeNotify, cb.ptr()); err != nil {
		cb.forget()
		endpoint.release()
		if uninit {
			ole.CoUninitialize()
		}
		return nil, errFactory.Wrap(errors.ErrRegisterFailed, err)
	}

	return &registration{endpoint: endpoint, cb: cb, uninit: uninit}, nil
}

type registration struct {
	endpoint *comObject
	cb       *endpointCallback
	uninit   bool
}

func (r *registration) Unregister() error {
	err := r.endpoint.call(slotUnregisterControlChangeNotify, r.cb.ptr())
	r.endpoint.release()
	r.cb.forget()
	if r.uninit {
		ole.CoUninitialize()
	}

	if err != nil {
		return errors.New().Wrap(errors.ErrUnregisterFailed, err)
	}

	return nil
}

// audioVolumeNotificationData mirrors AUDIO_VOLUME_NOTIFICATION_DATA
type audioVolumeNotificationData struct {
	eventContext   ole.GUID
	muted          int32
	masterVolume   float32
	channels       uint32
	channelVolumes [1]float32
}

// endpointCallback implements IAudioEndpointVolumeCallback. Instances are
// kept in callbacks while COM may hold them, so the collector never frees
// memory the OS still points at.
type endpointCallback struct {
	vtbl     *callbackVtbl
	refs     atomic.Int32
	notifier provider.Notifier[float32]
}

type callbackVtbl struct {
	queryInterface uintptr
	addRef         uintptr
	release        uintptr
	onNotify       uintptr
}

var (
	vtblOnce sync.Once
	vtbl     *callbackVtbl

	callbacksMu sync.Mutex
	callbacks   = map[uintptr]*endpointCallback{}
)

func newEndpointCallback(n provider.Notifier[float32]) *endpointCallback {
	vtblOnce.Do(func() {
		vtbl = &callbackVtbl{
			queryInterface: windows.NewCallback(cbQueryInterface),
			addRef:         windows.NewCallback(cbAddRef),
			release:        windows.NewCallback(cbRelease),
			onNotify:       windows.NewCallback(cbOnNotify),
		}
	})

	cb := &endpointCallback{vtbl: vtbl, notifier: n}
	cb.refs.Store(1)

	callbacksMu.Lock()
	callbacks[cb.ptr()] = cb
	callbacksMu.Unlock()

	return cb
}

func (cb *endpointCallback) ptr() uintptr {
	return uintptr(unsafe.Pointer(cb))
}

func (cb *endpointCallback) forget() {
	callbacksMu.Lock()
	delete(callbacks, cb.ptr())
	callbacksMu.Unlock()
}

func lookup(this uintptr) *endpointCallback {
	callbacksMu.Lock()
	defer callbacksMu.Unlock()

	return callbacks[this]
}

func cbQueryInterface(this, riid, ppv uintptr) uintptr {
	iid := (*ole.GUID)(unsafe.Pointer(riid))
	out := (*uintptr)(unsafe.Pointer(ppv))

	if ole.IsEqualGUID(iid, ole.IID_IUnknown) || ole.IsEqualGUID(iid, iidIAudioEndpointVolumeCallback) {
		*out = this
		cbAddRef(this)
		return sOK
	}

	*out = 0
	return eNoInterface
}

func cbAddRef(this uintptr) uintptr {
	cb := lookup(this)
	if cb == nil {
		return 1
	}

	return uintptr(cb.refs.Add(1))
}

func cbRelease(this uintptr) uintptr {
	cb := lookup(this)
	if cb == nil {
		return 0
	}

	return uintptr(cb.refs.Add(-1))
}

// cbOnNotify runs on an OS audio thread. It must always return S_OK, or
// the endpoint may stop notifying.
func cbOnNotify(this, data uintptr) uintptr {
	cb := lookup(this)
	if cb == nil || data == 0 {
		return sOK
	}

	level := (*audioVolumeNotificationData)(unsafe.Pointer(data)).masterVolume
	cb.notifier.Notify(level)

	return sOK
}
