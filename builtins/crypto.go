package builtins

import (
	"sync"

	"github.com/digitive/crypt"

	"etamoo/types"
)

// cryptMu serializes calls into the legacy crypt(3) primitive, which
// is specified as non-reentrant.
var cryptMu sync.Mutex

const saltChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789./"

func registerCrypto(r *Registry) {
	r.Register("crypt", sig(1, 2, types.TYPE_STR, types.TYPE_STR), bfCrypt)
}

// bfCrypt hashes text with the crypt(3)-compatible primitive. With no
// salt a random two-character salt is drawn. Preserved for database
// compatibility only; it is not a modern password hash.
func bfCrypt(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	text := args[0].(types.StrValue).Value()
	var salt string
	if len(args) > 1 {
		salt = args[1].(types.StrValue).Value()
		if len(salt) < 2 {
			return types.Err(types.E_INVARG)
		}
	} else {
		rngMu.Lock()
		salt = string([]byte{
			saltChars[rng.Intn(len(saltChars))],
			saltChars[rng.Intn(len(saltChars))],
		})
		rngMu.Unlock()
	}

	cryptMu.Lock()
	hashed, err := crypt.Crypt(text, salt)
	cryptMu.Unlock()
	if err != nil {
		return types.Err(types.E_INVARG)
	}
	return types.Ok(types.NewStr(hashed))
}
