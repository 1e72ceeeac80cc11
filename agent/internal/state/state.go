package state

import "sync/atomic"

type appState struct {
	Token    atomic.Value // string
	DeviceID atomic.Value // string
	Adopted  atomic.Bool
}

var s appState

func load(v *atomic.Value) string {
	if x := v.Load(); x != nil {
		if str, ok := x.(string); ok {
			return str
		}
	}
	return ""
}

func SetToken(t string) { s.Token.Store(t) }
func GetToken() string  { return load(&s.Token) }

func SetDeviceID(id string) { s.DeviceID.Store(id) }
func GetDeviceID() string   { return load(&s.DeviceID) }

func SetAdopted(v bool) { s.Adopted.Store(v) }
func IsAdopted() bool   { return s.Adopted.Load() }
