package nvconfig

import (
	"os"

	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/littlefs"
)

const settingsFile = "/picoatxt.bin"

// Manager persists Settings to a littlefs-formatted block device,
// grounded on tuffrabit-tinygo-narwhal-rp2040's pkg/storage.Manager:
// mount, format-on-failure, and a single atomic-rename write per save.
type Manager struct {
	fs      *littlefs.LFS
	mounted bool
}

// Open mounts dev, formatting it if the existing filesystem can't be
// mounted (first boot, or a corrupt filesystem).
func Open(dev tinyfs.BlockDevice) (*Manager, error) {
	fs := littlefs.New(dev)
	fs.Configure(&littlefs.Config{
		CacheSize:     256,
		LookaheadSize: 128,
	})

	if err := fs.Mount(); err != nil {
		if err := fs.Format(); err != nil {
			return nil, err
		}
		if err := fs.Mount(); err != nil {
			return nil, err
		}
	}

	return &Manager{fs: fs, mounted: true}, nil
}

// Close unmounts the filesystem.
func (m *Manager) Close() error {
	if !m.mounted {
		return nil
	}
	m.mounted = false
	return m.fs.Unmount()
}

// Load reads the stored Settings. A missing file or a record that fails
// to unmarshal (bad magic, version mismatch, short read) both return the
// zero Settings and false: nvconfig is a hint, never a fatal
// dependency, so callers that ignore the bool here get sane defaults.
func (m *Manager) Load() (Settings, bool) {
	var s Settings
	f, err := m.fs.Open(settingsFile)
	if err != nil {
		return s, false
	}
	defer f.Close()

	buf := make([]byte, settingsSize)
	n, err := f.Read(buf)
	if err != nil || n != settingsSize {
		return Settings{}, false
	}
	if err := s.UnmarshalBinary(buf); err != nil {
		return Settings{}, false
	}
	return s, true
}

// Save writes s atomically: to a temp file, then renamed over the real
// one, so a power loss mid-write never leaves a half-written record.
func (m *Manager) Save(s Settings) error {
	data, err := s.MarshalBinary()
	if err != nil {
		return err
	}

	tempPath := settingsFile + ".tmp"
	m.fs.Remove(tempPath)

	f, err := m.fs.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		m.fs.Remove(tempPath)
		return err
	}
	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			m.fs.Remove(tempPath)
			return err
		}
	}
	if err := f.Close(); err != nil {
		m.fs.Remove(tempPath)
		return err
	}

	m.fs.Remove(settingsFile)
	if err := m.fs.Rename(tempPath, settingsFile); err != nil {
		m.fs.Remove(tempPath)
		return err
	}
	return nil
}
