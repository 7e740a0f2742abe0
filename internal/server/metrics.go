package server

import "expvar"

var metricGameDataDropped = expvar.NewInt("server_game_data_dropped_total")
