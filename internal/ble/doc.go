// Package ble talks to AM43 blind motors over Bluetooth Low Energy.
//
// The Central owns the host adapter and provides discovery sweeps plus a
// session factory; a Session is the per-motor transport handle the bridge
// core drives. Commands and status queries share one GATT characteristic
// (service 0xFE50, characteristic 0xFE51) using the motor's framed
// protocol: header 0x9a, command, length, data, XOR checksum. Status
// readings come back as notifications on the same characteristic.
package ble
