// Package napi implements a client for the NAPI REST API
//
// Overview
//
// This package lets you connect to a NAPI daemon over HTTP and manage its
// network inventory: nic tags, networks, network pools, per-network IP
// records, nics and link aggregations.
//
// Example - provisioning a nic
//
// This provisions a nic on a network, letting the daemon pick the address.
//
//  // Connect to the daemon
//  c, err := napi.Connect("http://127.0.0.1:8080", nil)
//  if err != nil {
//    return err
//  }
//
//  // Provision request
//  req := api.NicCreate{
//    OwnerUUID:     owner,
//    BelongsToUUID: zone,
//    BelongsToType: "zone",
//  }
//
//  // Ask the daemon to allocate an address and create the nic
//  nic, err := c.ProvisionNic(networkUUID, req)
//  if err != nil {
//    return err
//  }
//
//  fmt.Println(nic.MAC, nic.IP)
//
// Example - watching the changefeed
//
// This prints every nic lifecycle event until the stream ends.
//
//  c, err := napi.Connect("http://127.0.0.1:8080", nil)
//  if err != nil {
//    return err
//  }
//
//  listener, err := c.GetEventsOfType([]string{"nic"})
//  if err != nil {
//    return err
//  }
//
//  _, err = listener.AddHandler(nil, func(event api.Event) {
//    fmt.Println(event.Action, event.ID)
//  })
//  if err != nil {
//    return err
//  }
//
//  return listener.Wait()
//
// Errors
//
// Failed requests return the daemon's error envelope as an *api.Error, so
// callers can branch on the code:
//
//  _, err := c.ProvisionNic(networkUUID, req)
//  if api.IsErrorCode(err, api.ErrCodeSubnetFull) {
//    // fall back to another network
//  }
package napi
