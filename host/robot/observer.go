package robot

import "github.com/rs/zerolog"

// wireLogger adapts zerolog to the protocol Observer hook, mirroring
// the hex dumps the board's reference utility prints in debug mode.
type wireLogger struct {
	log zerolog.Logger
}

func (w wireLogger) OnSend(raw []byte) {
	w.log.Debug().Hex("frame", raw).Msg("tx")
}

func (w wireLogger) OnReceive(raw []byte) {
	w.log.Debug().Hex("frame", raw).Msg("rx")
}
