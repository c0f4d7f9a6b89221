package crypto

import "github.com/aerioncore/mailcore/core/port/out"

var _ out.Cipher = (*Encryptor)(nil)
