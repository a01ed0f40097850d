/*
Package alerts routes staff alerts to rooms and keeps the alert log.

Dispatch validates a Request, computes its rooms, publishes it and then
persists it. Publishing comes first: a staff member on the floor gets the
alert even when the database write fails, in which case the Delivery
reports Persisted false.

Rooms for an alert:

	target roles                 role:<role> for each
	high or urgent priority      + role:admin
	cancellation type            + role:admin
	station                      + station:<station>
	addressed to a user          + user:<id>
	about an order               + order:<id>
	urgent                       broadcast to every connection

Readers see the alert types of their role (see visibleTypes). Legacy rows
without metadata get a state inferred from the message text on read.
*/
package alerts
