package security

import (
	"fmt"
	"os"
)

func SafeCreate(sp *SecurePath) (*os.File, error) {
	if sp == nil {
		return nil, fmt.Errorf("cannot create file with nil SecurePath")
	}
	return os.Create(sp.path)
}

func SafeOpen(sp *SecurePath) (*os.File, error) {
	if sp == nil {
		return nil, fmt.Errorf("cannot open file with nil SecurePath")
	}
	return os.Open(sp.path)
}

func SafeReadFile(sp *SecurePath) ([]byte, error) {
	if sp == nil {
		return nil, fmt.Errorf("cannot read file with nil SecurePath")
	}
	return os.ReadFile(sp.path)
}

func SafeMkdirAll(sp *SecurePath, perm os.FileMode) error {
	if sp == nil {
		return fmt.Errorf("cannot create directory with nil SecurePath")
	}
	return os.MkdirAll(sp.path, perm)
}

func SafeStat(sp *SecurePath) (os.FileInfo, error) {
	if sp == nil {
		return nil, fmt.Errorf("cannot stat file with nil SecurePath")
	}
	return os.Stat(sp.path)
}

func SafeRemoveIfExists(sp *SecurePath) error {
	if sp == nil {
		return nil
	}
	err := os.Remove(sp.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
