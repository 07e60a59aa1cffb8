package main

import "mqttlat/cmd"

func main() {
	cmd.Execute()
}
